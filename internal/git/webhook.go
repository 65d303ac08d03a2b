package git

import (
	"fmt"
	"net/http"

	"github.com/google/go-github/v68/github"

	"github.com/bf2/archbot/internal/forge"
)

// Webhook event names the bot handles.
const (
	EventPing         = "ping"
	EventPullRequest  = "pull_request"
	EventIssueComment = "issue_comment"
)

// Delivery is a verified webhook request.
type Delivery struct {
	ID    string
	Event string
	// Payload is one of *forge.PullRequestEvent, *forge.IssueCommentEvent or
	// nil for events the bot ignores.
	Payload any
}

// ReadWebhook verifies the signature of r against secret and decodes it. An
// empty secret skips verification.
func ReadWebhook(r *http.Request, secret string) (*Delivery, error) {
	var key []byte
	if secret != "" {
		key = []byte(secret)
	}
	body, err := github.ValidatePayload(r, key)
	if err != nil {
		return nil, fmt.Errorf("validate payload: %w", err)
	}

	d := &Delivery{ID: github.DeliveryID(r), Event: github.WebHookType(r)}
	switch d.Event {
	case EventPullRequest, EventIssueComment:
	default:
		return d, nil
	}

	ev, err := github.ParseWebHook(d.Event, body)
	if err != nil {
		return nil, fmt.Errorf("parse %s event: %w", d.Event, err)
	}
	switch ev := ev.(type) {
	case *github.PullRequestEvent:
		d.Payload = &forge.PullRequestEvent{
			Action: ev.GetAction(),
			Sender: ev.GetSender().GetLogin(),
			PR:     ConvertPullRequest(ev.GetPullRequest()),
		}
	case *github.IssueCommentEvent:
		is := ev.GetIssue()
		issue := forge.Issue{
			Number:  is.GetNumber(),
			Title:   is.GetTitle(),
			Author:  is.GetUser().GetLogin(),
			HTMLURL: is.GetHTMLURL(),
		}
		for _, a := range is.Assignees {
			issue.Assignees = append(issue.Assignees, a.GetLogin())
		}
		for _, l := range is.Labels {
			issue.Labels = append(issue.Labels, l.GetName())
		}
		d.Payload = &forge.IssueCommentEvent{
			Action:        ev.GetAction(),
			Commenter:     ev.GetComment().GetUser().GetLogin(),
			Body:          ev.GetComment().GetBody(),
			Issue:         issue,
			IsPullRequest: is.IsPullRequest(),
		}
	}
	return d, nil
}
