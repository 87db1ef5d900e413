package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/orderdesk-cli/internal/assembler"
	"github.com/sells-group/orderdesk-cli/internal/model"
	"github.com/sells-group/orderdesk-cli/internal/resolver"
	"github.com/sells-group/orderdesk-cli/internal/store"
	"github.com/sells-group/orderdesk-cli/pkg/oracle"
)

// fallbackResponse is sent when the response writer itself fails; the
// customer always gets a reply.
const fallbackResponse = "Thank you for your message. We were unable to fully process your request automatically; a member of our team will follow up shortly."

// Router drives one email through the stage graph: classify, resolve,
// then fulfill and advise (in parallel when the email carries both an order
// and an inquiry), then compose. Stage failures are recorded per stage and
// never abort the run; compose always produces a reply.
type Router struct {
	store    store.Store
	oracle   oracle.Client
	resolver *resolver.Resolver
	asm      *assembler.Assembler
}

// NewRouter creates a router with all stage dependencies.
func NewRouter(st store.Store, oc oracle.Client, res *resolver.Resolver, asm *assembler.Assembler) *Router {
	return &Router{store: st, oracle: oc, resolver: res, asm: asm}
}

// Process runs the full workflow for one email and persists the run, its
// stages, and the export rows.
func (r *Router) Process(ctx context.Context, email model.Email) (*model.RunResult, error) {
	log := zap.L().With(zap.String("request_id", email.RequestID))
	log.Info("workflow: processing email")

	result := &model.RunResult{Errors: map[string]string{}}

	run, err := r.store.CreateRun(ctx, email)
	if err != nil {
		return nil, eris.Wrap(err, "workflow: create run")
	}

	setStatus := func(status model.RunStatus) {
		if statusErr := r.store.UpdateRunStatus(ctx, run.ID, status); statusErr != nil {
			log.Warn("workflow: failed to update status", zap.Error(statusErr))
		}
	}

	// Stage tracking helper with mutex for concurrent access.
	var stagesMu sync.Mutex
	var totalUsage model.TokenUsage
	trackStage := func(name string, fn func() (*model.StageResult, error)) *model.StageResult {
		stage, stageErr := r.store.CreateStage(ctx, run.ID, name)
		if stageErr != nil {
			log.Warn("workflow: failed to create stage", zap.String("stage", name), zap.Error(stageErr))
		}

		start := time.Now()
		stageResult, fnErr := fn()
		duration := time.Since(start).Milliseconds()

		if stageResult == nil {
			stageResult = &model.StageResult{Name: name}
		}
		stageResult.Name = name
		stageResult.Duration = duration

		if fnErr != nil {
			stageResult.Status = model.StageStatusFailed
			stageResult.Error = fnErr.Error()
			log.Error("workflow: stage failed",
				zap.String("stage", name),
				zap.Int64("duration_ms", duration),
				zap.Error(fnErr),
			)
		} else {
			stageResult.Status = model.StageStatusComplete
			log.Info("workflow: stage complete",
				zap.String("stage", name),
				zap.Int64("duration_ms", duration),
			)
		}

		if stage != nil {
			_ = r.store.CompleteStage(ctx, stage.ID, stageResult)
		}
		stagesMu.Lock()
		result.Stages = append(result.Stages, *stageResult)
		if fnErr != nil {
			result.Errors[name] = fnErr.Error()
		}
		totalUsage.Add(stageResult.Usage)
		stagesMu.Unlock()
		return stageResult
	}

	// ===== Stage 1: classify =====
	setStatus(model.RunStatusClassifying)

	var cls model.Classification
	classifyResult := trackStage("classify", func() (*model.StageResult, error) {
		c, usage, clsErr := r.oracle.Classify(ctx, email)
		if clsErr != nil {
			return &model.StageResult{Usage: usage}, clsErr
		}
		cls = c
		return &model.StageResult{
			Usage: usage,
			Metadata: map[string]any{
				"has_order":   c.HasOrder,
				"has_inquiry": c.HasInquiry,
				"mentions":    len(c.Mentions),
			},
		}, nil
	})
	classifyFailed := classifyResult.Status == model.StageStatusFailed

	result.Category = cls.Category()

	// ===== Stage 2: resolve mentions =====
	var set model.ResolutionSet
	if len(cls.Mentions) > 0 {
		setStatus(model.RunStatusResolving)
		trackStage("resolve", func() (*model.StageResult, error) {
			s, resErr := r.resolver.ResolveAll(ctx, cls.Mentions)
			set = s
			sr := &model.StageResult{
				Metadata: map[string]any{
					"resolved":   len(s.Resolved),
					"unresolved": len(s.Unresolved),
				},
			}
			return sr, resErr
		})
	}

	// ===== Stage 3: fulfill and advise, in parallel when both apply =====
	var advice string
	g, gCtx := errgroup.WithContext(ctx)

	if cls.HasOrder {
		setStatus(model.RunStatusFulfilling)
		g.Go(func() error {
			trackStage("fulfill", func() (*model.StageResult, error) {
				order, asmErr := r.asm.Assemble(email.RequestID, set)
				if asmErr != nil {
					return nil, asmErr
				}
				stagesMu.Lock()
				result.Order = order
				stagesMu.Unlock()
				return &model.StageResult{
					Metadata: map[string]any{
						"order_status": string(order.Status),
						"lines":        len(order.Lines),
					},
				}, nil
			})
			return nil
		})
	}

	if cls.HasInquiry {
		g.Go(func() error {
			trackStage("advise", func() (*model.StageResult, error) {
				a, usage, advErr := r.oracle.Advise(gCtx, email, cls.Inquiries, set.Candidates())
				if advErr != nil {
					return &model.StageResult{Usage: usage}, advErr
				}
				stagesMu.Lock()
				advice = a
				result.Advice = a
				stagesMu.Unlock()
				return &model.StageResult{Usage: usage}, nil
			})
			return nil
		})
	}

	// Branch errors are tracked per-stage and never fail the run here.
	_ = g.Wait()

	// ===== Stage 4: compose, always =====
	setStatus(model.RunStatusComposing)
	trackStage("compose", func() (*model.StageResult, error) {
		response, usage, compErr := r.oracle.Compose(ctx, oracle.ComposeInput{
			Email:    email,
			Category: result.Category,
			Order:    result.Order,
			Advice:   advice,
		})
		if compErr != nil {
			return &model.StageResult{Usage: usage}, compErr
		}
		result.Response = response
		return &model.StageResult{Usage: usage}, nil
	})
	if result.Response == "" {
		result.Response = fallbackResponse
	}

	r.persistExportRows(ctx, email.RequestID, result, log)

	result.TotalTokens = totalUsage.Total()

	finalStatus := model.RunStatusComplete
	if classifyFailed {
		finalStatus = model.RunStatusFailed
	}
	if updErr := r.store.UpdateRunResult(ctx, run.ID, finalStatus, result); updErr != nil {
		log.Warn("workflow: failed to persist result", zap.Error(updErr))
	}

	log.Info("workflow: email processed",
		zap.String("category", string(result.Category)),
		zap.Int("stages", len(result.Stages)),
		zap.Int("errors", len(result.Errors)),
		zap.Int("total_tokens", result.TotalTokens),
	)
	return result, nil
}

// persistExportRows writes the classification row and, when an order was
// assembled, its per-line status rows.
func (r *Router) persistExportRows(ctx context.Context, requestID string, result *model.RunResult, log *zap.Logger) {
	if err := r.store.SaveRequestRow(ctx, model.RequestRow{
		RequestID: requestID,
		Category:  result.Category,
	}); err != nil {
		log.Warn("workflow: failed to save request row", zap.Error(err))
	}

	if result.Order == nil {
		return
	}
	rows := make([]model.OrderLineRow, 0, len(result.Order.Lines))
	for _, l := range result.Order.Lines {
		rows = append(rows, model.OrderLineRow{
			RequestID: requestID,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Status:    l.Status,
		})
	}
	if err := r.store.SaveOrderLineRows(ctx, rows); err != nil {
		log.Warn("workflow: failed to save order line rows", zap.Error(err))
	}
}
