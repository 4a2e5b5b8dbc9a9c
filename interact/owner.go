package interact

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/quailyquaily/socialsim/post"
)

type ReplyOutcome struct {
	CommentID string
	Commenter string
	Replied   bool
	Reason    string
	Text      string
}

type ReplySummary struct {
	Outcomes []ReplyOutcome
	Replied  int

	// Skipped counts own comments and comments that already had an owner reply.
	Skipped  int
	Declined int
}

// OwnerReplies lets the post author answer comments. Own comments and
// comments already carrying an owner reply are skipped, so running it twice
// adds nothing the second time.
func (o *Orchestrator) OwnerReplies(ctx context.Context, postID string) (ReplySummary, error) {
	var sum ReplySummary
	p, err := o.store.Get(ctx, postID)
	if err != nil {
		return sum, err
	}
	owner, err := o.roster.Find(p.Author)
	if err != nil {
		return sum, fmt.Errorf("owner of post %s: %w", postID, err)
	}
	ag := o.Agent(owner)

	for _, c := range p.Comments {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if strings.EqualFold(c.Author, owner.Name) || post.HasReplyBy(c, owner.Name) {
			sum.Skipped++
			o.log.Debug("owner_reply_skipped", "post_id", postID, "comment_id", c.ID)
			continue
		}
		out := ReplyOutcome{CommentID: c.ID, Commenter: c.Author}
		yes, reason, err := ag.DecideReplyToComment(ctx, c.Text, p.Text)
		if err != nil {
			return sum, err
		}
		out.Reason = reason
		if !yes {
			sum.Declined++
			sum.Outcomes = append(sum.Outcomes, out)
			continue
		}
		text, err := ag.ReplyToComment(ctx, c.Text, c.Author)
		if err != nil {
			out.Reason = "reply generation unavailable"
			sum.Declined++
			sum.Outcomes = append(sum.Outcomes, out)
			continue
		}
		err = o.store.AppendReply(ctx, postID, c.ID, post.Reply{Author: owner.Name, Text: text}, post.AppendOptions{UniqueAuthor: true})
		if errors.Is(err, post.ErrDuplicate) {
			sum.Skipped++
			continue
		}
		if err != nil {
			return sum, fmt.Errorf("reply to comment %s: %w", c.ID, err)
		}
		out.Replied = true
		out.Text = text
		sum.Replied++
		sum.Outcomes = append(sum.Outcomes, out)
		o.log.Info("owner_replied", "post_id", postID, "comment_id", c.ID, "owner", owner.Name)
	}
	return sum, nil
}
