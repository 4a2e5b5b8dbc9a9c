package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/quailyquaily/socialsim/internal/logutil"
	"github.com/quailyquaily/socialsim/llm"
	"github.com/quailyquaily/socialsim/memory"
	"github.com/quailyquaily/socialsim/strategy"
)

// PlaceholderPost marks a strategy post that could not be generated.
func PlaceholderPost(strategyName string) string {
	return fmt.Sprintf("[generation unavailable: %s]", strings.TrimSpace(strategyName))
}

// Reply answers message in the persona's voice. The message is kept in the
// history even when generation fails; only a successful exchange is stored in
// long-term memory.
func (a *Agent) Reply(ctx context.Context, message string) (string, error) {
	if a == nil {
		return "", errors.New("agent: nil agent")
	}
	message = strings.TrimSpace(message)

	a.mu.Lock()
	a.history.push(llm.Message{Role: llm.RoleUser, Content: message})
	a.mu.Unlock()

	memories := a.recall(ctx, message)
	system := a.persona.SystemPrompt()
	if block := memoryBlock(memories, "Things you remember that may be relevant:"); block != "" {
		system += "\n\n" + block
	}
	messages := append([]llm.Message{{Role: llm.RoleSystem, Content: system}}, a.History()...)

	raw, err := a.chat(ctx, messages, ReplyOptions)
	if err != nil {
		a.log.Warn("reply_unavailable", "error", err.Error())
		return "", fmt.Errorf("agent %s reply: %w", a.persona.Name, err)
	}
	text := CleanReply(raw, a.persona.Name)

	a.mu.Lock()
	a.history.push(llm.Message{Role: llm.RoleAssistant, Content: text})
	a.mu.Unlock()

	exchange := fmt.Sprintf("User: %s\n%s: %s", message, a.persona.Name, text)
	if err := a.remember(ctx, exchange, memory.TypeConversation, nil); err != nil {
		a.log.Warn("memory_write_failed", "type", memory.TypeConversation, "error", err.Error())
	}
	a.log.Debug("reply_generated", "chars", len(text), "memories", len(memories))
	return text, nil
}

// DecideInteraction asks the persona how it reacts to a post. It never fails
// on generation problems: an unavailable backend yields a random active
// decision and malformed output yields IGNORE.
func (a *Agent) DecideInteraction(ctx context.Context, content string, author string) (Decision, error) {
	if a == nil {
		return Decision{}, errors.New("agent: nil agent")
	}
	if strings.EqualFold(strings.TrimSpace(author), strings.TrimSpace(a.persona.Name)) {
		return Decision{Action: ActionIgnore, Reason: "own post"}, nil
	}

	prompt := fmt.Sprintf("You are scrolling through social media. You see a post by %s: \"%s\"\n", author, strings.TrimSpace(content)) +
		"Decide how you want to interact with this post. Your options are:\n" +
		"LIKE: you like the post.\n" +
		"COMMENT: you write a comment reply.\n" +
		"BOTH: you like and comment.\n" +
		"IGNORE: you do nothing.\n\n" +
		"Respond on one line in the format DECISION | REASON, where DECISION is one of LIKE, COMMENT, BOTH, IGNORE and REASON is a short sentence."

	raw, err := a.generate(ctx, a.framed(prompt), DecisionOptions)
	if err != nil {
		d := Decision{Action: a.randomActive(), Reason: fallbackReason}
		a.log.Warn("decision_fallback", "author", author, "action", d.Action, "error", err.Error())
		return d, nil
	}
	d, perr := ParseDecision(raw)
	if perr != nil {
		a.log.Debug("decision_malformed", "raw", logutil.Truncate(raw, 120))
	}
	a.log.Info("interaction_decided", "author", author, "action", d.Action, "reason", logutil.Truncate(d.Reason, 120))
	return d, nil
}

func (a *Agent) randomActive() Action {
	active := [...]Action{ActionLike, ActionComment, ActionBoth}
	a.mu.Lock()
	defer a.mu.Unlock()
	return active[a.rng.IntN(len(active))]
}

// DecideReplyToComment asks the persona, as post author, whether to answer a
// comment. Generation failure means no reply.
func (a *Agent) DecideReplyToComment(ctx context.Context, comment string, postContext string) (bool, string, error) {
	if a == nil {
		return false, "", errors.New("agent: nil agent")
	}
	prompt := fmt.Sprintf("You wrote this post: \"%s\"\n", strings.TrimSpace(postContext)) +
		fmt.Sprintf("Someone commented: \"%s\"\n\n", strings.TrimSpace(comment)) +
		"Do you want to reply to this comment?\n" +
		"Respond on one line in the format YES | REASON or NO | REASON."

	raw, err := a.generate(ctx, a.framed(prompt), DecisionOptions)
	if err != nil {
		a.log.Warn("reply_decision_fallback", "error", err.Error())
		return false, fallbackReason, nil
	}
	yes, reason, _ := ParseYesNo(raw)
	return yes, reason, nil
}

// ScoreActions asks for a probability for each possible reaction.
func (a *Agent) ScoreActions(ctx context.Context, content string) (ActionScores, error) {
	if a == nil {
		return ActionScores{}, errors.New("agent: nil agent")
	}
	prompt := fmt.Sprintf("You see this post on social media: \"%s\"\n\n", strings.TrimSpace(content)) +
		"How likely are you to react in each way? Give a number between 0 and 1 for each option.\n" +
		"Respond on one line exactly in the format IGNORE=x, LIKE=x, COMMENT=x, BOTH=x."

	raw, err := a.generate(ctx, a.framed(prompt), DecisionOptions)
	if err != nil {
		a.log.Warn("score_fallback", "error", err.Error())
		return UniformScores(), nil
	}
	scores, _ := ParseActionScores(raw)
	return scores, nil
}

// GenerateFromStrategy writes a short post following the named strategy. On
// generation failure it returns a marked placeholder instead of an error.
func (a *Agent) GenerateFromStrategy(ctx context.Context, strategyName string) (string, error) {
	if a == nil {
		return "", errors.New("agent: nil agent")
	}
	strategyName = strings.TrimSpace(strategyName)
	instruction := strategy.Instruction(strategyName)
	memories := a.recall(ctx, strategyName)

	var b strings.Builder
	b.WriteString(a.persona.SystemPrompt())
	b.WriteString("\n\nWrite a single social media post.\n")
	fmt.Fprintf(&b, "Strategy: %s\n", strategyName)
	fmt.Fprintf(&b, "Instruction: %s\n", instruction)
	if block := memoryBlock(memories, "Some of your earlier posts and thoughts, for style continuity:"); block != "" {
		b.WriteString("\n")
		b.WriteString(block)
	}
	b.WriteString("\nKeep it under 280 characters. Output ONLY the post text, with no quotes or preamble.")

	raw, err := a.generate(ctx, b.String(), StrategyPostOptions)
	if err != nil {
		a.log.Warn("strategy_post_unavailable", "strategy", strategyName, "error", err.Error())
		return PlaceholderPost(strategyName), nil
	}
	text := CleanReply(raw, a.persona.Name)
	if err := a.remember(ctx, text, memory.TypePost, map[string]string{"strategy": strategyName}); err != nil {
		a.log.Warn("memory_write_failed", "type", memory.TypePost, "error", err.Error())
	}
	a.log.Debug("strategy_post_generated", "strategy", strategyName, "chars", len(text))
	return text, nil
}

// ReplyToComment writes a one-off answer to a comment. It does not touch the
// conversation history; the exchange is stored as an interaction memory.
func (a *Agent) ReplyToComment(ctx context.Context, comment string, commenter string) (string, error) {
	if a == nil {
		return "", errors.New("agent: nil agent")
	}
	quoted := strings.TrimSpace(comment)
	if commenter = strings.TrimSpace(commenter); commenter != "" {
		quoted = commenter + ": " + quoted
	}
	raw, err := a.generate(ctx, a.persona.ReplyPrompt(quoted), ReplyOptions)
	if err != nil {
		a.log.Warn("comment_reply_unavailable", "commenter", commenter, "error", err.Error())
		return "", fmt.Errorf("agent %s comment reply: %w", a.persona.Name, err)
	}
	text := CleanReply(raw, a.persona.Name)
	if text == "" {
		return "", fmt.Errorf("agent %s comment reply: %w", a.persona.Name, llm.ErrUnavailable)
	}
	if err := a.remember(ctx, fmt.Sprintf("Replied to %s: %s", orUnknown(commenter), text), memory.TypeInteraction, nil); err != nil {
		a.log.Warn("memory_write_failed", "type", memory.TypeInteraction, "error", err.Error())
	}
	return text, nil
}

func orUnknown(s string) string {
	if s == "" {
		return "someone"
	}
	return s
}
