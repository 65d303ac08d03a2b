package forge

// PullRequestEvent is a pull request webhook delivery.
type PullRequestEvent struct {
	Action string
	Sender string
	PR     PullRequest
}

// IssueCommentEvent is an issue comment webhook delivery. Comments on pull
// requests arrive as issue comments too.
type IssueCommentEvent struct {
	Action        string
	Commenter     string
	Body          string
	Issue         Issue
	IsPullRequest bool
}
