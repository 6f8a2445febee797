package taskqueue

import (
	"context"
	"fmt"
	"log/slog"

	cloudtasks "cloud.google.com/go/cloudtasks/apiv2"
	taskspb "cloud.google.com/go/cloudtasks/apiv2/cloudtaskspb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"
)

type CloudTasksClient struct {
	client *cloudtasks.Client
	logger *slog.Logger
}

type CloudTasksClientConfig struct {
	// CredentialsFile points at a service account key file. Application
	// default credentials are used when empty.
	CredentialsFile string
}

func NewCloudTasksClient(ctx context.Context, cfg CloudTasksClientConfig) (*CloudTasksClient, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := cloudtasks.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create cloud tasks client: %w", err)
	}

	return &CloudTasksClient{
		client: client,
		logger: slog.Default().With(slog.String("module", "taskqueue")),
	}, nil
}

// CreateTask creates one HTTP task on the given queue. Failures are
// surfaced to the caller as-is; retrying a failed submission is the
// caller's decision, not this client's.
func (c *CloudTasksClient) CreateTask(ctx context.Context, req CreateTaskRequest) (*TaskResponse, error) {
	taskReq, err := buildCreateTaskRequest(req)
	if err != nil {
		return nil, err
	}

	c.logger.DebugContext(ctx, "creating task in Cloud Tasks",
		slog.String("queue_path", req.QueuePath),
		slog.String("task_id", req.TaskID),
	)

	createdTask, err := c.client.CreateTask(ctx, taskReq)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("%w: %s: %v", ErrQueueNotFound, req.QueuePath, err)
		}

		c.logger.WarnContext(ctx, "failed to create cloud task",
			slog.String("queue_path", req.QueuePath),
			slog.String("error", err.Error()),
		)

		return nil, fmt.Errorf("%w: %v", ErrCreateTask, err)
	}

	c.logger.DebugContext(ctx, "task created in Cloud Tasks",
		slog.String("task_name", createdTask.Name),
	)

	resp := &TaskResponse{Name: createdTask.Name}
	if createdTask.CreateTime != nil {
		resp.CreateTime = createdTask.CreateTime.AsTime()
	}

	return resp, nil
}

// Close closes the underlying Cloud Tasks client.
func (c *CloudTasksClient) Close() error {
	return c.client.Close()
}

func buildCreateTaskRequest(req CreateTaskRequest) (*taskspb.CreateTaskRequest, error) {
	if req.QueuePath == "" {
		return nil, fmt.Errorf("%w: queue path is empty", ErrInvalidTask)
	}

	if req.TargetURL == "" {
		return nil, fmt.Errorf("%w: target URL is empty", ErrInvalidTask)
	}

	method, err := httpMethod(req.HTTPMethod)
	if err != nil {
		return nil, err
	}

	httpReq := &taskspb.HttpRequest{
		HttpMethod: method,
		Url:        req.TargetURL,
		Headers:    req.Headers,
		Body:       req.Body,
	}

	if req.OIDC != nil {
		httpReq.AuthorizationHeader = &taskspb.HttpRequest_OidcToken{
			OidcToken: &taskspb.OidcToken{
				ServiceAccountEmail: req.OIDC.ServiceAccountEmail,
				Audience:            req.OIDC.Audience,
			},
		}
	}

	cloudTask := &taskspb.Task{
		MessageType: &taskspb.Task_HttpRequest{HttpRequest: httpReq},
	}

	if req.TaskID != "" {
		cloudTask.Name = fmt.Sprintf("%s/tasks/%s", req.QueuePath, req.TaskID)
	}

	if req.ScheduleTime != nil {
		cloudTask.ScheduleTime = timestamppb.New(*req.ScheduleTime)
	}

	return &taskspb.CreateTaskRequest{
		Parent: req.QueuePath,
		Task:   cloudTask,
	}, nil
}

func httpMethod(method string) (taskspb.HttpMethod, error) {
	switch method {
	case "", "POST":
		return taskspb.HttpMethod_POST, nil
	case "GET":
		return taskspb.HttpMethod_GET, nil
	case "PUT":
		return taskspb.HttpMethod_PUT, nil
	case "PATCH":
		return taskspb.HttpMethod_PATCH, nil
	case "DELETE":
		return taskspb.HttpMethod_DELETE, nil
	case "HEAD":
		return taskspb.HttpMethod_HEAD, nil
	case "OPTIONS":
		return taskspb.HttpMethod_OPTIONS, nil
	default:
		return taskspb.HttpMethod_HTTP_METHOD_UNSPECIFIED,
			fmt.Errorf("%w: unsupported HTTP method %q", ErrInvalidTask, method)
	}
}
