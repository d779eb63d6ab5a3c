package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/naka-gawa/github-contributions/internal/domain"
	"github.com/shurcooL/githubv4"
	"github.com/sirupsen/logrus"
)

// BatchSize is the number of repositories one batched query selects.
const BatchSize = 5

type searchRepository struct {
	NameWithOwner string
	URL           string
	IsPrivate     bool
}

func (r searchRepository) toRepository() domain.Repository {
	return domain.Repository{FullName: r.NameWithOwner, URL: r.URL, Private: r.IsPrivate}
}

type reviewNode struct {
	DatabaseID  int64 `graphql:"databaseId"`
	State       string
	SubmittedAt githubv4.DateTime
	URL         string
}

// searchContributionsQuery returns pull requests and issues with the user's
// reviews nested in each pull request.
type searchContributionsQuery struct {
	Search struct {
		PageInfo struct {
			HasNextPage bool
			EndCursor   githubv4.String
		}
		Nodes []struct {
			Typename    string `graphql:"__typename"`
			PullRequest struct {
				Number     int
				Title      string
				State      string
				CreatedAt  githubv4.DateTime
				MergedAt   *githubv4.DateTime
				URL        string
				Repository searchRepository
				Reviews    struct {
					Nodes []reviewNode
				} `graphql:"reviews(author: $login, first: 20) @include(if: $withReviews)"`
			} `graphql:"... on PullRequest"`
			Issue struct {
				Number     int
				Title      string
				State      string
				CreatedAt  githubv4.DateTime
				URL        string
				Repository searchRepository
			} `graphql:"... on Issue"`
		}
	} `graphql:"search(query: $query, type: ISSUE, first: 100, after: $cursor)"`
}

// SearchPullRequests finds pull requests the identity opened within the window.
func (g *GitHubGateway) SearchPullRequests(ctx context.Context, id domain.Identity, window domain.DateRange, includePrivate bool, maxPages int) (*SearchResult, error) {
	query := searchQuery(fmt.Sprintf("author:%s is:pr", id.Login), window.SearchQualifier("created"), includePrivate)
	return g.search(ctx, id, query, domain.KindPullRequest, window, maxPages)
}

// SearchIssues finds issues the identity opened within the window.
func (g *GitHubGateway) SearchIssues(ctx context.Context, id domain.Identity, window domain.DateRange, includePrivate bool, maxPages int) (*SearchResult, error) {
	query := searchQuery(fmt.Sprintf("author:%s is:issue", id.Login), window.SearchQualifier("created"), includePrivate)
	return g.search(ctx, id, query, domain.KindIssue, window, maxPages)
}

// SearchReviews finds reviews the identity submitted within the window on pull
// requests updated during it.
func (g *GitHubGateway) SearchReviews(ctx context.Context, id domain.Identity, window domain.DateRange, includePrivate bool, maxPages int) (*SearchResult, error) {
	query := searchQuery(fmt.Sprintf("reviewed-by:%s is:pr", id.Login), window.SearchQualifier("updated"), includePrivate)
	return g.search(ctx, id, query, domain.KindReview, window, maxPages)
}

func (g *GitHubGateway) search(ctx context.Context, id domain.Identity, query string, kind domain.Kind, window domain.DateRange, maxPages int) (*SearchResult, error) {
	g.logger.WithFields(logrus.Fields{"kind": kind, "query": query}).Info("searching with GraphQL API")
	variables := map[string]interface{}{
		"query":       githubv4.String(query),
		"cursor":      (*githubv4.String)(nil),
		"login":       githubv4.String(id.Login),
		"withReviews": githubv4.Boolean(kind == domain.KindReview),
	}
	result := &SearchResult{}
	seen := make(map[string]bool)
	addRepo := func(repo searchRepository) {
		if repo.NameWithOwner == "" || seen[repo.NameWithOwner] {
			return
		}
		seen[repo.NameWithOwner] = true
		result.Repositories = append(result.Repositories, repo.toRepository())
	}

	for page := 1; page <= maxPages; page++ {
		var q searchContributionsQuery
		err := g.guard.Do(ctx, "search "+kind.Label(), func(ctx context.Context) error {
			return g.graphqlClient.Query(ctx, &q, variables)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to execute GraphQL query for %s: %w", strings.ToLower(kind.Label()), err)
		}

		for _, node := range q.Search.Nodes {
			switch {
			case node.Typename == "PullRequest" && kind == domain.KindPullRequest:
				pr := node.PullRequest
				addRepo(pr.Repository)
				result.Records = append(result.Records, domain.ContributionRecord{
					Repository: pr.Repository.NameWithOwner,
					Kind:       domain.KindPullRequest,
					Timestamp:  pr.CreatedAt.UTC(),
					Title:      pr.Title,
					Identifier: domain.NumberIdentifier(pr.Number),
					State:      pullRequestState(pr.State, pr.MergedAt != nil),
					URL:        pr.URL,
				})
			case node.Typename == "PullRequest" && kind == domain.KindReview:
				pr := node.PullRequest
				for _, review := range pr.Reviews.Nodes {
					if !window.Contains(review.SubmittedAt.Time) {
						continue
					}
					addRepo(pr.Repository)
					result.Records = append(result.Records, reviewRecord(pr.Repository.NameWithOwner, pr.Title, pr.Number, review))
				}
			case node.Typename == "Issue" && kind == domain.KindIssue:
				issue := node.Issue
				addRepo(issue.Repository)
				result.Records = append(result.Records, domain.ContributionRecord{
					Repository: issue.Repository.NameWithOwner,
					Kind:       domain.KindIssue,
					Timestamp:  issue.CreatedAt.UTC(),
					Title:      issue.Title,
					Identifier: domain.NumberIdentifier(issue.Number),
					State:      strings.ToLower(issue.State),
					URL:        issue.URL,
				})
			}
		}

		if !q.Search.PageInfo.HasNextPage {
			break
		}
		if page == maxPages {
			g.logger.WithFields(logrus.Fields{"kind": kind, "pages": maxPages}).Warn("search truncated at page limit")
			break
		}
		variables["cursor"] = githubv4.NewString(q.Search.PageInfo.EndCursor)
		g.logger.WithField("kind", kind).Debug("fetching next page of search results")
	}
	g.logger.WithFields(logrus.Fields{"kind": kind, "count": len(result.Records)}).Info("completed search")
	return result, nil
}

type batchCommitNode struct {
	Oid             string
	MessageHeadline string
	AuthoredDate    githubv4.DateTime
	URL             string
}

type batchPullRequestNode struct {
	Number    int
	Title     string
	State     string
	CreatedAt githubv4.DateTime
	MergedAt  *githubv4.DateTime
	URL       string
	Author    struct {
		Login string
	}
	Reviews struct {
		Nodes []reviewNode
	} `graphql:"reviews(author: $login, first: 10) @include(if: $withReviews)"`
}

type batchIssueNode struct {
	Number    int
	Title     string
	State     string
	CreatedAt githubv4.DateTime
	URL       string
}

type batchRepository struct {
	NameWithOwner    string
	URL              string
	IsPrivate        bool
	DefaultBranchRef *struct {
		Target struct {
			Commit struct {
				History struct {
					Nodes []batchCommitNode
				} `graphql:"history(first: $commitLimit, since: $since, until: $until, author: $author)"`
			} `graphql:"... on Commit"`
		}
	} `graphql:"defaultBranchRef @include(if: $withCommits)"`
	PullRequests struct {
		Nodes []batchPullRequestNode
	} `graphql:"pullRequests(first: 50, orderBy: {field: CREATED_AT, direction: DESC}) @include(if: $withPullRequests)"`
	Issues struct {
		Nodes []batchIssueNode
	} `graphql:"issues(first: $issueLimit, filterBy: {createdBy: $login, since: $issueSince}, orderBy: {field: CREATED_AT, direction: DESC}) @include(if: $withIssues)"`
}

// repositoryBatchQuery selects BatchSize repositories in one round trip.
type repositoryBatchQuery struct {
	Repo0 *batchRepository `graphql:"repo0: repository(owner: $owner0, name: $name0)"`
	Repo1 *batchRepository `graphql:"repo1: repository(owner: $owner1, name: $name1)"`
	Repo2 *batchRepository `graphql:"repo2: repository(owner: $owner2, name: $name2)"`
	Repo3 *batchRepository `graphql:"repo3: repository(owner: $owner3, name: $name3)"`
	Repo4 *batchRepository `graphql:"repo4: repository(owner: $owner4, name: $name4)"`
}

func (q *repositoryBatchQuery) results() []*batchRepository {
	return []*batchRepository{q.Repo0, q.Repo1, q.Repo2, q.Repo3, q.Repo4}
}

// QueryRepositoryBatch fetches the identity's commits, pull requests, issues
// and reviews for up to BatchSize repositories with a single GraphQL query.
// Kinds whose cap is zero are not selected.
func (g *GitHubGateway) QueryRepositoryBatch(ctx context.Context, id domain.Identity, repos []domain.Repository, window domain.DateRange, caps domain.Caps) ([]domain.ContributionRecord, error) {
	if len(repos) == 0 {
		return nil, nil
	}
	if len(repos) > BatchSize {
		return nil, fmt.Errorf("batch of %d repositories exceeds the limit of %d", len(repos), BatchSize)
	}

	variables := map[string]interface{}{
		"login":            githubv4.String(id.Login),
		"author":           githubv4.CommitAuthor{ID: githubv4.NewID(id.NodeID)},
		"since":            githubv4.GitTimestamp{Time: window.Since()},
		"until":            githubv4.GitTimestamp{Time: window.Until()},
		"issueSince":       githubv4.DateTime{Time: window.Since()},
		"commitLimit":      githubv4.Int(pageSize(caps.Commits)),
		"issueLimit":       githubv4.Int(pageSize(caps.Issues)),
		"withCommits":      githubv4.Boolean(caps.Enabled(domain.KindCommit)),
		"withPullRequests": githubv4.Boolean(caps.Enabled(domain.KindPullRequest) || caps.Enabled(domain.KindReview)),
		"withIssues":       githubv4.Boolean(caps.Enabled(domain.KindIssue)),
		"withReviews":      githubv4.Boolean(caps.Enabled(domain.KindReview)),
	}
	// Unused aliases repeat the last repository and are ignored.
	for i := 0; i < BatchSize; i++ {
		repo := repos[min(i, len(repos)-1)]
		owner, name, err := domain.SplitFullName(repo.FullName)
		if err != nil {
			return nil, err
		}
		variables[fmt.Sprintf("owner%d", i)] = githubv4.String(owner)
		variables[fmt.Sprintf("name%d", i)] = githubv4.String(name)
	}

	names := make([]string, len(repos))
	for i, repo := range repos {
		names[i] = repo.FullName
	}
	unit := strings.Join(names, ", ")

	var q repositoryBatchQuery
	err := g.guard.Do(ctx, unit, func(ctx context.Context) error {
		return g.graphqlClient.Query(ctx, &q, variables)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to execute GraphQL batch query: %w", err)
	}

	var records []domain.ContributionRecord
	for i, node := range q.results()[:len(repos)] {
		if node == nil {
			g.logger.WithField("repository", repos[i].FullName).Warn("repository not returned by batch query")
			continue
		}
		records = append(records, node.records(id, window, caps)...)
	}
	return records, nil
}

func (r *batchRepository) records(id domain.Identity, window domain.DateRange, caps domain.Caps) []domain.ContributionRecord {
	var records []domain.ContributionRecord
	if r.DefaultBranchRef != nil && caps.Enabled(domain.KindCommit) {
		for _, c := range r.DefaultBranchRef.Target.Commit.History.Nodes {
			records = append(records, domain.ContributionRecord{
				Repository: r.NameWithOwner,
				Kind:       domain.KindCommit,
				Timestamp:  c.AuthoredDate.UTC(),
				Title:      c.MessageHeadline,
				Identifier: c.Oid,
				URL:        c.URL,
			})
		}
	}
	for _, pr := range r.PullRequests.Nodes {
		if caps.Enabled(domain.KindPullRequest) && strings.EqualFold(pr.Author.Login, id.Login) && window.Contains(pr.CreatedAt.Time) {
			records = append(records, domain.ContributionRecord{
				Repository: r.NameWithOwner,
				Kind:       domain.KindPullRequest,
				Timestamp:  pr.CreatedAt.UTC(),
				Title:      pr.Title,
				Identifier: domain.NumberIdentifier(pr.Number),
				State:      pullRequestState(pr.State, pr.MergedAt != nil),
				URL:        pr.URL,
			})
		}
		if !caps.Enabled(domain.KindReview) {
			continue
		}
		for _, review := range pr.Reviews.Nodes {
			if window.Contains(review.SubmittedAt.Time) {
				records = append(records, reviewRecord(r.NameWithOwner, pr.Title, pr.Number, review))
			}
		}
	}
	if caps.Enabled(domain.KindIssue) {
		for _, issue := range r.Issues.Nodes {
			if !window.Contains(issue.CreatedAt.Time) {
				continue
			}
			records = append(records, domain.ContributionRecord{
				Repository: r.NameWithOwner,
				Kind:       domain.KindIssue,
				Timestamp:  issue.CreatedAt.UTC(),
				Title:      issue.Title,
				Identifier: domain.NumberIdentifier(issue.Number),
				State:      strings.ToLower(issue.State),
				URL:        issue.URL,
			})
		}
	}
	return records
}

func reviewRecord(repository, title string, number int, review reviewNode) domain.ContributionRecord {
	return domain.ContributionRecord{
		Repository: repository,
		Kind:       domain.KindReview,
		Timestamp:  review.SubmittedAt.UTC(),
		Title:      title,
		Identifier: domain.ReviewIdentifier(number, review.DatabaseID),
		State:      strings.ToLower(review.State),
		URL:        review.URL,
	}
}

func searchQuery(base, dateQualifier string, includePrivate bool) string {
	query := base + " " + dateQualifier
	if !includePrivate {
		query += " is:public"
	}
	return query
}
