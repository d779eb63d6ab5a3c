// Package gateway provides a gateway to the GitHub API,
// abstracting away the underlying REST and GraphQL clients.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/naka-gawa/github-contributions/internal/domain"
	"github.com/naka-gawa/github-contributions/internal/ratelimit"
	"github.com/shurcooL/githubv4"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const perPage = 100

// Options configures the clients.
type Options struct {
	Token      string
	APIURL     string
	GraphQLURL string
	Timeout    time.Duration
	MaxWait    time.Duration
}

// GitHubGateway talks to GitHub over REST and GraphQL. Every request goes
// through the rate-limit guard.
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	guard         *ratelimit.Guard
	logger        logrus.FieldLogger
}

// Quota is the remaining budget of one GitHub rate-limit bucket.
type Quota struct {
	Name      string
	Limit     int
	Remaining int
	Reset     time.Time
}

// NewGitHubGateway is a constructor that creates a new instance of GitHubGateway.
func NewGitHubGateway(opts Options, guard *ratelimit.Guard, logger logrus.FieldLogger) (*GitHubGateway, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, domain.NewConfigurationError(errors.New("a GitHub token is required (--token, GITHUB_TOKEN or github.token)"))
	}
	transport, err := ratelimit.NewTransport(http.DefaultTransport, guard.Quota(), opts.MaxWait, logger)
	if err != nil {
		return nil, err
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Base:   transport,
			Source: ts,
		},
		Timeout: opts.Timeout,
	}

	restClient := github.NewClient(httpClient)
	if opts.APIURL != "" {
		restClient, err = restClient.WithEnterpriseURLs(opts.APIURL, opts.APIURL)
		if err != nil {
			return nil, domain.NewConfigurationError(fmt.Errorf("invalid GitHub API URL: %w", err))
		}
	}
	graphqlClient := githubv4.NewClient(httpClient)
	if opts.GraphQLURL != "" {
		graphqlClient = githubv4.NewEnterpriseClient(opts.GraphQLURL, httpClient)
	}

	return &GitHubGateway{
		restClient:    restClient,
		graphqlClient: graphqlClient,
		guard:         guard,
		logger:        logger,
	}, nil
}

// ResolveIdentity returns the tracked user: the owner of the token when
// username is empty, the named user otherwise.
func (g *GitHubGateway) ResolveIdentity(ctx context.Context, username string) (domain.Identity, error) {
	var self *github.User
	err := g.guard.Do(ctx, "identity", func(ctx context.Context) error {
		var err error
		self, _, err = g.restClient.Users.Get(ctx, "")
		return err
	})
	if err != nil {
		return domain.Identity{}, fmt.Errorf("failed to resolve the authenticated user: %w", err)
	}

	username = strings.TrimSpace(username)
	if username == "" || strings.EqualFold(username, self.GetLogin()) {
		return domain.Identity{Login: self.GetLogin(), NodeID: self.GetNodeID(), Authenticated: true}, nil
	}

	var user *github.User
	err = g.guard.Do(ctx, "identity", func(ctx context.Context) error {
		var err error
		user, _, err = g.restClient.Users.Get(ctx, username)
		return err
	})
	if err != nil {
		if IsNotFound(err) {
			return domain.Identity{}, domain.NewConfigurationError(fmt.Errorf("user %q not found", username))
		}
		return domain.Identity{}, fmt.Errorf("failed to look up user %s: %w", username, err)
	}
	return domain.Identity{Login: user.GetLogin(), NodeID: user.GetNodeID()}, nil
}

// ListRepositories enumerates the repositories visible to the identity: owned,
// collaborator and organization repositories for the token owner, public
// repositories for anyone else.
func (g *GitHubGateway) ListRepositories(ctx context.Context, id domain.Identity) ([]domain.Repository, error) {
	var repos []domain.Repository
	page := 1
	for page != 0 {
		var (
			result []*github.Repository
			resp   *github.Response
		)
		err := g.guard.Do(ctx, "list repositories", func(ctx context.Context) error {
			var err error
			listOpts := github.ListOptions{PerPage: perPage, Page: page}
			if id.Authenticated {
				result, resp, err = g.restClient.Repositories.ListByAuthenticatedUser(ctx, &github.RepositoryListByAuthenticatedUserOptions{
					Affiliation: "owner,collaborator,organization_member",
					Sort:        "full_name",
					ListOptions: listOpts,
				})
			} else {
				result, resp, err = g.restClient.Repositories.ListByUser(ctx, id.Login, &github.RepositoryListByUserOptions{
					Type:        "owner",
					Sort:        "full_name",
					ListOptions: listOpts,
				})
			}
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list repositories: %w", err)
		}
		for _, repo := range result {
			repos = append(repos, toRepository(repo))
		}
		page = resp.NextPage
		if page != 0 {
			g.logger.WithField("page", page).Debug("fetching next page of repositories")
		}
	}
	g.logger.WithField("count", len(repos)).Info("enumerated repositories")
	return repos, nil
}

// GetRepository looks up a repository's metadata.
func (g *GitHubGateway) GetRepository(ctx context.Context, fullName string) (domain.Repository, error) {
	owner, name, err := domain.SplitFullName(fullName)
	if err != nil {
		return domain.Repository{}, err
	}
	var repo *github.Repository
	err = g.guard.Do(ctx, fullName, func(ctx context.Context) error {
		var err error
		repo, _, err = g.restClient.Repositories.Get(ctx, owner, name)
		return err
	})
	if err != nil {
		return domain.Repository{}, fmt.Errorf("failed to get repository %s: %w", fullName, err)
	}
	return toRepository(repo), nil
}

// RateLimits reports the current quota of the core, search and GraphQL buckets.
func (g *GitHubGateway) RateLimits(ctx context.Context) ([]Quota, error) {
	var limits *github.RateLimits
	err := g.guard.Do(ctx, "rate limits", func(ctx context.Context) error {
		var err error
		limits, _, err = g.restClient.RateLimit.Get(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get rate limits: %w", err)
	}
	var quotas []Quota
	for _, bucket := range []struct {
		name string
		rate *github.Rate
	}{
		{"core", limits.Core},
		{"search", limits.Search},
		{"graphql", limits.GraphQL},
	} {
		if bucket.rate == nil {
			continue
		}
		quotas = append(quotas, Quota{
			Name:      bucket.name,
			Limit:     bucket.rate.Limit,
			Remaining: bucket.rate.Remaining,
			Reset:     bucket.rate.Reset.Time,
		})
	}
	return quotas, nil
}

func toRepository(repo *github.Repository) domain.Repository {
	return domain.Repository{
		FullName: repo.GetFullName(),
		URL:      repo.GetHTMLURL(),
		Private:  repo.GetPrivate(),
	}
}

// IsNotFound reports whether err is a 404 from the REST API.
func IsNotFound(err error) bool {
	var respErr *github.ErrorResponse
	return errors.As(err, &respErr) && respErr.Response != nil && respErr.Response.StatusCode == http.StatusNotFound
}
