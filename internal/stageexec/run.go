package stageexec

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"scribe/internal/logging"
	"scribe/internal/notifications"
	"scribe/internal/services"
	"scribe/internal/stage"
)

// Options controls one stage execution.
type Options struct {
	Logger   *slog.Logger
	Notifier notifications.Service
	Executor stage.Executor
	Stage    stage.Stage
	Request  stage.Request
	// Timeout bounds the executor. Zero means no bound.
	Timeout time.Duration
}

// Outcome is the executor result plus execution bookkeeping.
type Outcome struct {
	stage.Result
	RequestID string
	Duration  time.Duration
}

// Run executes a stage and logs its start, completion or failure. The
// executor context is detached from ctx's cancellation so an interrupt lets
// the running stage finish; only Timeout bounds it. Panics become failed
// results.
func Run(ctx context.Context, opts Options) Outcome {
	requestID := uuid.NewString()
	out := Outcome{RequestID: requestID}
	if opts.Executor == nil {
		out.Result = stage.Failed(services.Wrap(services.ErrConfiguration, opts.Stage.String(), "dispatch",
			fmt.Sprintf("no executor registered for %s", opts.Stage), nil))
		return out
	}

	stageCtx := services.WithItem(ctx, opts.Request.Identity)
	stageCtx = services.WithStage(stageCtx, opts.Stage.String())
	stageCtx = services.WithRequestID(stageCtx, requestID)
	stageLogger := logging.WithContext(stageCtx, opts.Logger)

	stageLogger.Info(
		"stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("intake", string(opts.Request.Intake)),
		logging.String("source_file", strings.TrimSpace(opts.Request.SourcePath)),
	)

	execCtx := context.WithoutCancel(stageCtx)
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(execCtx, opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	out.Result = invoke(execCtx, opts.Executor, opts.Request, opts.Stage)
	out.Duration = time.Since(start)

	if out.Result.OK() {
		stageLogger.Info(
			"stage completed",
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.String("artifact", out.Result.Artifact),
			logging.Duration("duration", out.Duration),
		)
		return out
	}

	handleFailure(stageCtx, stageLogger, opts.Notifier, opts.Stage, opts.Request.Identity, out)
	return out
}

func invoke(ctx context.Context, exec stage.Executor, req stage.Request, st stage.Stage) (result stage.Result) {
	defer func() {
		if r := recover(); r != nil {
			result = stage.Failed(services.Wrap(services.ErrExternalTool, st.String(), "execute",
				fmt.Sprintf("executor panic: %v", r), fmt.Errorf("%s", debug.Stack())))
		}
	}()
	result = exec.Execute(ctx, req)
	if result.Err != nil && ctx.Err() != nil && services.Kind(result.Err) == services.ErrorKindUnknown {
		result.Err = services.Wrap(services.ErrTimeout, st.String(), "execute", "stage timeout exceeded", result.Err)
	}
	return result
}

func handleFailure(ctx context.Context, logger *slog.Logger, notifier notifications.Service, st stage.Stage, identity string, out Outcome) {
	details := services.Details(out.Err)
	message := strings.TrimSpace(details.Message)
	if message == "" {
		message = strings.TrimSpace(out.Err.Error())
	}

	logger.Error(
		"stage failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String("error_kind", string(details.Kind)),
		logging.String("error_message", message),
		logging.Duration("duration", out.Duration),
		logging.Error(out.Err),
	)

	if notifier == nil {
		return
	}
	contextLabel := fmt.Sprintf("%s (%s)", st, identity)
	if err := notifier.Publish(ctx, notifications.EventError, notifications.Payload{
		"error":   out.Err,
		"context": contextLabel,
	}); err != nil {
		logger.Debug("stage error notification failed", logging.Error(err))
	}
}
