package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/vc-hotseat/backend/internal/config"
	"github.com/zhouzirui/vc-hotseat/backend/internal/model/pitch"
)

var (
	// ErrModelUnavailable is returned when no chat model is configured.
	ErrModelUnavailable = errors.New("language model unavailable")
	// ErrEmptyResponse is returned when the model answered with no text.
	ErrEmptyResponse = errors.New("language model returned empty response")
)

const historyLimit = 20

// Service wraps the chat model behind the four language-model roles:
// rebuttal, reaction classification, report synthesis and mentoring.
type Service struct {
	chatModel model.BaseChatModel
	cfg       config.AIConfig
	chain     compose.Runnable[map[string]any, *schema.Message]
	log       *logrus.Entry
}

// NewService compiles the prompt chain around chatModel.
func NewService(ctx context.Context, chatModel model.BaseChatModel, cfg config.AIConfig) (*Service, error) {
	if chatModel == nil {
		return nil, ErrModelUnavailable
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		cfg:       cfg,
		chain:     runnable,
		log:       logrus.WithField("component", "ai"),
	}, nil
}

// Available reports whether a model is wired.
func (s *Service) Available() bool {
	return s != nil && s.chain != nil
}

func (s *Service) invoke(ctx context.Context, system string, history []*schema.Message, query string, opts ...model.Option) (string, error) {
	if !s.Available() {
		return "", ErrModelUnavailable
	}

	input := map[string]any{
		"system":  system,
		"history": history,
		"query":   query,
	}

	var callOpts []compose.Option
	if len(opts) > 0 {
		callOpts = append(callOpts, compose.WithChatModelOption(opts...))
	}

	msg, err := s.chain.Invoke(ctx, input, callOpts...)
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(msg.Content), nil
}

// Rebuttal writes the one-to-two sentence investor interruption for a
// fired category. facts may be empty when the lookup failed.
func (s *Service) Rebuttal(ctx context.Context, category pitch.Category, statement string, facts []pitch.Fact) (string, error) {
	if !s.Available() {
		return "", ErrModelUnavailable
	}
	frame, ok := rebuttalFrames[category]
	if !ok {
		return "", fmt.Errorf("unknown category %q", category)
	}

	text, err := s.invoke(ctx, investorSystemPrompt, nil, buildRebuttalPrompt(frame, statement, facts),
		model.WithTemperature(s.cfg.RebuttalTemperature),
		model.WithMaxTokens(s.cfg.RebuttalMaxTokens),
	)
	if err != nil {
		return "", err
	}
	s.log.WithFields(logrus.Fields{"category": category, "facts": len(facts)}).Debug("rebuttal generated")
	return text, nil
}

func buildRebuttalPrompt(frame rebuttalFrame, statement string, facts []pitch.Fact) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %q", frame.Lead, statement)

	if len(facts) > 0 {
		b.WriteString("\n\nREAL MARKET DATA (from web search):")
		for _, f := range facts {
			fmt.Fprintf(&b, "\n- %s: %s", f.Source, f.Fact)
		}
	}

	b.WriteString("\n\n")
	b.WriteString(frame.Ask)
	b.WriteString(" ")
	if len(facts) > 0 {
		b.WriteString(frame.WithFacts)
	} else {
		b.WriteString(frame.Bare)
	}
	b.WriteString(" Keep it to 1-2 sentences.")
	return b.String()
}

// ClassifyReaction labels the founder's reply. Any failure or an answer
// outside the three labels yields neutral.
func (s *Service) ClassifyReaction(ctx context.Context, rebuttal, reply string) pitch.Reaction {
	if !s.Available() {
		return pitch.Neutral
	}
	query := fmt.Sprintf("VC asked: %q\n\nFounder responded: %q\n\nHow was the founder's reaction?", rebuttal, reply)

	text, err := s.invoke(ctx, reactionSystemPrompt, nil, query,
		model.WithTemperature(s.cfg.ReactionTemperature),
		model.WithMaxTokens(s.cfg.ReactionMaxTokens),
	)
	if err != nil {
		s.log.WithError(err).Warn("reaction classification failed, defaulting to neutral")
		return pitch.Neutral
	}

	word := strings.Trim(strings.ToLower(text), " \t\n.!\"'")
	if reaction, ok := pitch.ParseReaction(word); ok {
		return reaction
	}
	s.log.WithField("answer", text).Warn("unexpected reaction label, defaulting to neutral")
	return pitch.Neutral
}

// MentorInput carries one Socratic mentoring turn.
type MentorInput struct {
	Report  pitch.Report
	Focus   pitch.FocusArea
	History []pitch.ChatMessage
	Message string
}

// Mentor answers the founder with Socratic questions grounded in the
// report scores. Failures are returned to the caller.
func (s *Service) Mentor(ctx context.Context, in MentorInput) (string, error) {
	r := in.Report
	system := fmt.Sprintf(mentorSystemTemplate,
		r.MarketClarity, r.TechDefensibility, r.UnitEconomicLogic, r.InvestorReadiness,
		r.CoachabilityDelta, in.Focus,
	)
	return s.invoke(ctx, system, buildHistory(in.History), in.Message,
		model.WithTemperature(s.cfg.MentorTemperature),
		model.WithMaxTokens(s.cfg.MentorMaxTokens),
	)
}

func buildHistory(messages []pitch.ChatMessage) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	start := 0
	if len(messages) > historyLimit {
		start = len(messages) - historyLimit
	}

	history := make([]*schema.Message, 0, len(messages)-start)
	for _, msg := range messages[start:] {
		switch msg.Role {
		case pitch.RoleUser:
			history = append(history, schema.UserMessage(msg.Content))
		case pitch.RoleAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return history
}
