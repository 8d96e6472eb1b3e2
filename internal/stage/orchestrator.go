package stage

import (
	"context"
	"errors"
	"fmt"

	"github.com/stagelab/chatroom/internal/adapter/llm"
	"github.com/stagelab/chatroom/internal/domain"
	"github.com/stagelab/chatroom/internal/policy"
	"github.com/stagelab/chatroom/internal/sessionlog"
	"github.com/stagelab/chatroom/internal/state"
)

// DefaultMaxAttempts bounds the Performer+Moderator retry loop per turn.
const DefaultMaxAttempts = 3

// ErrPolicySkip marks a turn dropped by the turn policy rather than by a
// generation failure.
var ErrPolicySkip = errors.New("turn skipped by policy")

// TurnResult is the outcome of one successful pipeline turn. For like
// actions Message is nil and TargetMessageID identifies the liked message;
// for everything else Message holds the built, not-yet-committed message.
type TurnResult struct {
	ActionType      domain.ActionType
	AgentName       string
	Message         *domain.Message
	TargetMessageID string
	TargetUser      string
	Reasoning       string
}

// Config parameterizes an Orchestrator.
type Config struct {
	ContextWindow   int
	MaxAttempts     int
	ChatroomContext string
}

// Orchestrator runs the Director -> Performer -> Moderator pipeline for one
// session. It is read-only with respect to session state: committing the
// result is the caller's job, which keeps the turn's single mutation atomic
// and last.
type Orchestrator struct {
	director  llm.Client
	performer llm.Client
	moderator llm.Client
	st        *state.State
	policy    *policy.Engine
	logger    *sessionlog.Logger

	contextWindow int
	maxAttempts   int

	// System prompts are session-static and built once.
	directorSystem  string
	performerSystem string
	moderatorSystem string
}

// NewOrchestrator wires the pipeline for a session.
func NewOrchestrator(director, performer, moderator llm.Client, st *state.State, pol *policy.Engine, logger *sessionlog.Logger, cfg Config) *Orchestrator {
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = 10
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &Orchestrator{
		director:        director,
		performer:       performer,
		moderator:       moderator,
		st:              st,
		policy:          pol,
		logger:          logger,
		contextWindow:   cfg.ContextWindow,
		maxAttempts:     cfg.MaxAttempts,
		directorSystem:  BuildDirectorSystemPrompt(st.Treatment(), st.HumanName(), cfg.ChatroomContext),
		performerSystem: BuildPerformerSystemPrompt(cfg.ChatroomContext),
		moderatorSystem: BuildModeratorSystemPrompt(cfg.ChatroomContext),
	}
}

// ExecuteTurn runs one full pipeline turn. A nil error means the returned
// TurnResult is ready to commit; any error means the turn is skipped and the
// session proceeds to its next tick unaffected.
func (o *Orchestrator) ExecuteTurn(ctx context.Context) (*TurnResult, error) {
	recent := o.st.Recent(o.contextWindow)
	agents := o.st.Agents()

	// Deciding: exactly one Director call, no retry at this level.
	userPrompt := BuildDirectorUserPrompt(recent, agents)
	directorRaw, err := o.director.Generate(ctx, &llm.Request{
		Role:   llm.RoleDirector,
		System: o.directorSystem,
		Prompt: userPrompt,
	})
	o.logger.LLMCall(string(llm.RoleDirector), "__director__", userPrompt, directorRaw, errString(err))
	if err != nil {
		return nil, fmt.Errorf("director call failed: %w", err)
	}

	decision, err := ParseDirectorResponse(directorRaw)
	if err != nil {
		return nil, fmt.Errorf("director parse failed: %w", err)
	}

	if !o.st.HasAgent(decision.NextAgent) {
		return nil, fmt.Errorf("director chose unknown agent %q", decision.NextAgent)
	}

	// Resolve reference targets before any generation work; a dangling
	// target aborts the turn outright.
	var target *domain.Message
	if decision.TargetMessageID != "" {
		target, err = o.st.MessageByID(decision.TargetMessageID)
		if err != nil && (decision.ActionType == domain.ActionReply || decision.ActionType == domain.ActionLike) {
			return nil, fmt.Errorf("director referenced unknown message: %w", err)
		}
	}

	if o.policy != nil {
		verdict, perr := o.policy.Evaluate(ctx, policy.Input{
			ActionType: string(decision.ActionType),
			NextAgent:  decision.NextAgent,
			TargetUser: decision.TargetUser,
			HumanUser:  o.st.HumanName(),
		})
		if perr != nil {
			return nil, fmt.Errorf("turn policy evaluation failed: %w", perr)
		}
		if verdict != policy.DecisionAllow {
			return nil, fmt.Errorf("%w: %s/%s", ErrPolicySkip, decision.ActionType, decision.NextAgent)
		}
	}

	result := &TurnResult{
		ActionType:      decision.ActionType,
		AgentName:       decision.NextAgent,
		TargetMessageID: decision.TargetMessageID,
		TargetUser:      decision.TargetUser,
		Reasoning:       decision.Reasoning,
	}

	// Likes are fully resolved by the Director; no text is generated.
	if decision.ActionType == domain.ActionLike {
		return result, nil
	}

	content, err := o.renderAndSanitize(ctx, decision, recent, target)
	if err != nil {
		return nil, err
	}

	msg := domain.NewMessage(decision.NextAgent, content)
	switch decision.ActionType {
	case domain.ActionMention:
		msg.Content = MentionContent(decision.TargetUser, content)
		msg.Mentions = []string{decision.TargetUser}
	case domain.ActionReply:
		msg.ReplyTo = decision.TargetMessageID
		if target != nil {
			msg.QuotedText = target.Content
		}
	}

	result.Message = msg
	return result, nil
}

// renderAndSanitize runs the bounded Performer+Moderator loop. Each attempt
// is one Performer call and at most one Moderator call; attempts are capped
// at maxAttempts regardless of which stage failed.
func (o *Orchestrator) renderAndSanitize(ctx context.Context, decision *domain.Decision, recent []*domain.Message, target *domain.Message) (string, error) {
	performerPrompt := BuildPerformerUserPrompt(decision, recent, target)

	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		performerRaw, err := o.performer.Generate(ctx, &llm.Request{
			Role:   llm.RolePerformer,
			System: o.performerSystem,
			Prompt: performerPrompt,
		})
		o.logger.LLMCall(string(llm.RolePerformer), decision.NextAgent, performerPrompt, performerRaw, errString(err))
		if err != nil {
			o.logger.Error("performer_call", fmt.Sprintf("attempt %d/%d: %v", attempt, o.maxAttempts, err))
			continue
		}

		moderatorPrompt := BuildModeratorUserPrompt(performerRaw, decision.ActionType)
		moderatorRaw, err := o.moderator.Generate(ctx, &llm.Request{
			Role:   llm.RoleModerator,
			System: o.moderatorSystem,
			Prompt: moderatorPrompt,
		})
		o.logger.LLMCall(string(llm.RoleModerator), "__moderator__", moderatorPrompt, moderatorRaw, errString(err))
		if err != nil {
			o.logger.Error("moderator_call", fmt.Sprintf("attempt %d/%d: %v", attempt, o.maxAttempts, err))
			continue
		}

		content, err := ParseModeratorResponse(moderatorRaw)
		if err != nil {
			o.logger.Error("moderator_no_content", fmt.Sprintf("attempt %d/%d", attempt, o.maxAttempts))
			continue
		}
		return content, nil
	}

	return "", fmt.Errorf("no usable performer content after %d attempts", o.maxAttempts)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
