package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/naka-gawa/github-contributions/internal/domain"
	"github.com/naka-gawa/github-contributions/internal/ratelimit"
	"github.com/shurcooL/githubv4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	january = domain.DateRange{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}
	octocat = domain.Identity{Login: "octocat", NodeID: "MDQ6VXNlcjE=", Authenticated: true}
)

// setupTestGateway creates a GitHubGateway that communicates with a mock HTTP server.
func setupTestGateway(t *testing.T, handler http.Handler) *GitHubGateway {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	// Setup REST client to point to the mock server.
	restClient := github.NewClient(server.Client())
	baseURL, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	restClient.BaseURL = baseURL

	// Use NewEnterpriseClient to point the GraphQL client to our mock server's URL.
	graphqlClient := githubv4.NewEnterpriseClient(server.URL+"/graphql", server.Client())

	logger := logrus.New()
	logger.Out = io.Discard
	guard := ratelimit.NewGuard(ratelimit.Options{MaxAttempts: 2}, &ratelimit.Quota{}, logger)
	guard.Sleep = func(context.Context, time.Duration) error { return nil }

	return &GitHubGateway{
		restClient:    restClient,
		graphqlClient: graphqlClient,
		guard:         guard,
		logger:        logger,
	}
}

func nextPageLink(r *http.Request, page int) string {
	return fmt.Sprintf(`<http://%s%s?page=%d>; rel="next"`, r.Host, r.URL.Path, page)
}

func TestGitHubGateway_ResolveIdentity(t *testing.T) {
	testCases := []struct {
		name        string
		username    string
		handler     http.HandlerFunc
		expected    domain.Identity
		expectedErr error
	}{
		{
			name:     "empty username resolves the token owner",
			username: "",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/user", r.URL.Path)
				fmt.Fprint(w, `{"login":"octocat","node_id":"MDQ6VXNlcjE="}`)
			},
			expected: domain.Identity{Login: "octocat", NodeID: "MDQ6VXNlcjE=", Authenticated: true},
		},
		{
			name:     "another user is looked up by name",
			username: "hubot",
			handler: func(w http.ResponseWriter, r *http.Request) {
				switch r.URL.Path {
				case "/user":
					fmt.Fprint(w, `{"login":"octocat","node_id":"MDQ6VXNlcjE="}`)
				case "/users/hubot":
					fmt.Fprint(w, `{"login":"hubot","node_id":"MDQ6VXNlcjI="}`)
				default:
					t.Errorf("unexpected path %s", r.URL.Path)
				}
			},
			expected: domain.Identity{Login: "hubot", NodeID: "MDQ6VXNlcjI="},
		},
		{
			name:     "bad credentials are an authentication error",
			username: "",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				fmt.Fprint(w, `{"message":"Bad credentials"}`)
			},
			expectedErr: domain.ErrAuthentication,
		},
		{
			name:     "unknown user is a configuration error",
			username: "ghost",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/user" {
					fmt.Fprint(w, `{"login":"octocat"}`)
					return
				}
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, `{"message":"Not Found"}`)
			},
			expectedErr: domain.ErrConfiguration,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gateway := setupTestGateway(t, tc.handler)
			identity, err := gateway.ResolveIdentity(context.Background(), tc.username)
			if tc.expectedErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tc.expectedErr), "got %v", err)
				assert.True(t, domain.IsFatal(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, identity)
		})
	}
}

func TestGitHubGateway_ListRepositories(t *testing.T) {
	t.Run("token owner follows pagination", func(t *testing.T) {
		gateway := setupTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/user/repos", r.URL.Path)
			assert.Equal(t, "owner,collaborator,organization_member", r.URL.Query().Get("affiliation"))
			if r.URL.Query().Get("page") == "2" {
				fmt.Fprint(w, `[{"full_name":"org/b","html_url":"https://github.com/org/b","private":true}]`)
				return
			}
			w.Header().Set("Link", nextPageLink(r, 2))
			fmt.Fprint(w, `[{"full_name":"octocat/a","html_url":"https://github.com/octocat/a","private":false}]`)
		}))

		repos, err := gateway.ListRepositories(context.Background(), octocat)
		require.NoError(t, err)
		assert.Equal(t, []domain.Repository{
			{FullName: "octocat/a", URL: "https://github.com/octocat/a"},
			{FullName: "org/b", URL: "https://github.com/org/b", Private: true},
		}, repos)
	})

	t.Run("other users list their public repositories", func(t *testing.T) {
		gateway := setupTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/users/hubot/repos", r.URL.Path)
			fmt.Fprint(w, `[{"full_name":"hubot/x"}]`)
		}))

		repos, err := gateway.ListRepositories(context.Background(), domain.Identity{Login: "hubot"})
		require.NoError(t, err)
		assert.Equal(t, []domain.Repository{{FullName: "hubot/x"}}, repos)
	})
}

func TestGitHubGateway_ListCommits(t *testing.T) {
	testCases := []struct {
		name           string
		limit          int
		handlerFunc    func(w http.ResponseWriter, r *http.Request)
		expectedSHAs   []string
		expectError    bool
		expectedErrMsg string
	}{
		{
			name:  "happy path - filters by author and window",
			limit: 50,
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/repos/org/repo-a/commits", r.URL.Path)
				assert.Equal(t, "octocat", r.URL.Query().Get("author"))
				assert.Equal(t, "2024-01-01T00:00:00Z", r.URL.Query().Get("since"))
				assert.Equal(t, "2024-02-01T00:00:00Z", r.URL.Query().Get("until"))
				fmt.Fprint(w, `[
					{"sha":"aaaaaaaaaa","html_url":"https://github.com/org/repo-a/commit/aaaaaaaaaa","commit":{"message":"Fix bug\n\nlong body","author":{"date":"2024-01-10T12:00:00Z"}}},
					{"sha":"bbbbbbbbbb","commit":{"message":"Add feature","author":{"date":"2024-01-09T12:00:00Z"}}}
				]`)
			},
			expectedSHAs: []string{"aaaaaaaaaa", "bbbbbbbbbb"},
		},
		{
			name:  "stops at the limit",
			limit: 1,
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "1", r.URL.Query().Get("per_page"))
				w.Header().Set("Link", nextPageLink(r, 2))
				fmt.Fprint(w, `[{"sha":"aaaaaaaaaa","commit":{"message":"Fix bug","author":{"date":"2024-01-10T12:00:00Z"}}}]`)
			},
			expectedSHAs: []string{"aaaaaaaaaa"},
		},
		{
			name:  "error case - GitHub API returns an error",
			limit: 50,
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, `{"message": "Not Found"}`)
			},
			expectError:    true,
			expectedErrMsg: "failed to list commits of org/repo-a",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gateway := setupTestGateway(t, http.HandlerFunc(tc.handlerFunc))
			records, err := gateway.ListCommits(context.Background(), octocat, domain.Repository{FullName: "org/repo-a"}, january, tc.limit)
			if tc.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.expectedErrMsg)
				return
			}
			require.NoError(t, err)
			var shas []string
			for _, record := range records {
				assert.Equal(t, domain.KindCommit, record.Kind)
				assert.Equal(t, "org/repo-a", record.Repository)
				shas = append(shas, record.Identifier)
			}
			assert.Equal(t, tc.expectedSHAs, shas)
			assert.Equal(t, "Fix bug", records[0].Title)
		})
	}
}

func TestGitHubGateway_ListPullRequests(t *testing.T) {
	gateway := setupTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/org/repo-a/pulls", r.URL.Path)
		assert.Equal(t, "created", r.URL.Query().Get("sort"))
		assert.Equal(t, "all", r.URL.Query().Get("state"))
		// Second page must not be requested once an older pull request is seen.
		w.Header().Set("Link", nextPageLink(r, 2))
		fmt.Fprint(w, `[
			{"number":4,"title":"Too new","state":"open","created_at":"2024-02-02T00:00:00Z","user":{"login":"octocat"}},
			{"number":3,"title":"Someone else","state":"open","created_at":"2024-01-20T00:00:00Z","user":{"login":"hubot"}},
			{"number":2,"title":"Merged work","state":"closed","created_at":"2024-01-15T00:00:00Z","merged_at":"2024-01-16T00:00:00Z","user":{"login":"octocat"}},
			{"number":1,"title":"Too old","state":"open","created_at":"2023-12-30T00:00:00Z","user":{"login":"octocat"}}
		]`)
	}))

	records, err := gateway.ListPullRequests(context.Background(), octocat, domain.Repository{FullName: "org/repo-a"}, january, 20)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "2", records[0].Identifier)
	assert.Equal(t, "merged", records[0].State)
	assert.Equal(t, domain.KindPullRequest, records[0].Kind)
}

func TestGitHubGateway_ListIssues(t *testing.T) {
	gateway := setupTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/org/repo-a/issues", r.URL.Path)
		assert.Equal(t, "octocat", r.URL.Query().Get("creator"))
		fmt.Fprint(w, `[
			{"number":9,"title":"A pull request","state":"open","created_at":"2024-01-20T00:00:00Z","pull_request":{"url":"x"}},
			{"number":8,"title":"Crash on start","state":"closed","created_at":"2024-01-12T00:00:00Z"}
		]`)
	}))

	records, err := gateway.ListIssues(context.Background(), octocat, domain.Repository{FullName: "org/repo-a"}, january, 20)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.ContributionRecord{
		Repository: "org/repo-a",
		Kind:       domain.KindIssue,
		Timestamp:  time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC),
		Title:      "Crash on start",
		Identifier: "8",
		State:      "closed",
	}, records[0])
}

func TestGitHubGateway_ListReviews(t *testing.T) {
	gateway := setupTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/org/repo-a/pulls":
			assert.Equal(t, "updated", r.URL.Query().Get("sort"))
			fmt.Fprint(w, `[
				{"number":5,"title":"Refactor","updated_at":"2024-01-25T00:00:00Z"},
				{"number":4,"title":"Stale","updated_at":"2023-11-01T00:00:00Z"}
			]`)
		case "/repos/org/repo-a/pulls/5/reviews":
			fmt.Fprint(w, `[
				{"id":100,"state":"APPROVED","submitted_at":"2024-01-24T00:00:00Z","user":{"login":"octocat"}},
				{"id":101,"state":"COMMENTED","submitted_at":"2024-01-24T00:00:00Z","user":{"login":"hubot"}}
			]`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	records, err := gateway.ListReviews(context.Background(), octocat, domain.Repository{FullName: "org/repo-a"}, january, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "5/100", records[0].Identifier)
	assert.Equal(t, "approved", records[0].State)
	assert.Equal(t, "Refactor", records[0].Title)
}

func TestGitHubGateway_ListReviewsKeepsMostRecent(t *testing.T) {
	gateway := setupTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/org/repo-a/pulls":
			fmt.Fprint(w, `[
				{"number":1,"title":"Old review, recent push","updated_at":"2024-01-30T00:00:00Z"},
				{"number":2,"title":"Recent review","updated_at":"2024-01-29T00:00:00Z"}
			]`)
		case "/repos/org/repo-a/pulls/1/reviews":
			fmt.Fprint(w, `[{"id":10,"state":"APPROVED","submitted_at":"2024-01-02T00:00:00Z","user":{"login":"octocat"}}]`)
		case "/repos/org/repo-a/pulls/2/reviews":
			fmt.Fprint(w, `[{"id":20,"state":"COMMENTED","submitted_at":"2024-01-28T00:00:00Z","user":{"login":"octocat"}}]`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	records, err := gateway.ListReviews(context.Background(), octocat, domain.Repository{FullName: "org/repo-a"}, january, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "2/20", records[0].Identifier)
}

func TestGitHubGateway_SearchCommits(t *testing.T) {
	testCases := []struct {
		name           string
		includePrivate bool
		maxPages       int
		expectedQuery  string
		expectedPages  int
		expectedCount  int
	}{
		{
			name:          "public only, single page limit",
			maxPages:      1,
			expectedQuery: "author:octocat author-date:2024-01-01..2024-01-31 is:public",
			expectedPages: 1,
			expectedCount: 2,
		},
		{
			name:           "private included, follows pages",
			includePrivate: true,
			maxPages:       10,
			expectedQuery:  "author:octocat author-date:2024-01-01..2024-01-31",
			expectedPages:  2,
			expectedCount:  4,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			pages := 0
			gateway := setupTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				pages++
				assert.Equal(t, "/search/commits", r.URL.Path)
				assert.Equal(t, tc.expectedQuery, r.URL.Query().Get("q"))
				if r.URL.Query().Get("page") != "2" {
					w.Header().Set("Link", nextPageLink(r, 2))
				}
				fmt.Fprint(w, `{"total_count": 4, "incomplete_results": false, "items": [
					{"sha":"a1","commit":{"message":"one","author":{"date":"2024-01-02T00:00:00Z"}},"repository":{"full_name":"org/repo-a","private":false}},
					{"sha":"b1","commit":{"message":"two","author":{"date":"2024-01-03T00:00:00Z"}},"repository":{"full_name":"org/repo-b","private":true}}
				]}`)
			}))

			result, err := gateway.SearchCommits(context.Background(), octocat, january, tc.includePrivate, tc.maxPages)
			require.NoError(t, err)
			assert.Equal(t, tc.expectedPages, pages)
			assert.Len(t, result.Records, tc.expectedCount)
			assert.Equal(t, []domain.Repository{
				{FullName: "org/repo-a"},
				{FullName: "org/repo-b", Private: true},
			}, result.Repositories)
		})
	}
}

func TestGitHubGateway_SearchCommitRepositories(t *testing.T) {
	t.Run("combines commit and issue searches", func(t *testing.T) {
		gateway := setupTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/search/commits":
				fmt.Fprint(w, `{"items":[{"sha":"a1","repository":{"full_name":"org/repo-a","private":false}}]}`)
			case "/search/issues":
				assert.Contains(t, r.URL.Query().Get("q"), "involves:octocat")
				fmt.Fprint(w, `{"items":[
					{"number":1,"repository_url":"https://api.github.com/repos/org/repo-a"},
					{"number":2,"repository_url":"https://api.github.com/repos/org/repo-c"},
					{"number":3,"repository_url":"https://api.github.com/repos/org/gone"}
				]}`)
			case "/repos/org/repo-c":
				fmt.Fprint(w, `{"full_name":"org/repo-c","private":true}`)
			case "/repos/org/gone":
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, `{"message":"Not Found"}`)
			default:
				t.Errorf("unexpected path %s", r.URL.Path)
			}
		}))

		repos, err := gateway.SearchCommitRepositories(context.Background(), octocat, january, 10)
		require.NoError(t, err)
		assert.Equal(t, []domain.Repository{
			{FullName: "org/repo-a"},
			{FullName: "org/repo-c", Private: true},
		}, repos)
	})

	t.Run("incomplete results are an error", func(t *testing.T) {
		gateway := setupTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"incomplete_results": true, "items": []}`)
		}))

		_, err := gateway.SearchCommitRepositories(context.Background(), octocat, january, 10)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "incomplete")
	})

	t.Run("no matches is an empty result", func(t *testing.T) {
		gateway := setupTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"incomplete_results": false, "items": []}`)
		}))

		repos, err := gateway.SearchCommitRepositories(context.Background(), octocat, january, 10)
		require.NoError(t, err)
		assert.NotNil(t, repos)
		assert.Empty(t, repos)
	})

	truncated := []struct {
		name      string
		paginated string
		expected  string
	}{
		{name: "commit search cut short by the page limit", paginated: "/search/commits", expected: "commit search exceeded 1 pages"},
		{name: "issue search cut short by the page limit", paginated: "/search/issues", expected: "issue search exceeded 1 pages"},
	}
	for _, tc := range truncated {
		t.Run(tc.name, func(t *testing.T) {
			gateway := setupTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == tc.paginated {
					w.Header().Set("Link", nextPageLink(r, 2))
				}
				switch r.URL.Path {
				case "/search/commits":
					fmt.Fprint(w, `{"items":[{"sha":"a1","repository":{"full_name":"org/repo-a","private":false}}]}`)
				case "/search/issues":
					fmt.Fprint(w, `{"items":[{"number":1,"repository_url":"https://api.github.com/repos/org/repo-a"}]}`)
				default:
					t.Errorf("unexpected path %s", r.URL.Path)
				}
			}))

			repos, err := gateway.SearchCommitRepositories(context.Background(), octocat, january, 1)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.expected)
			assert.Nil(t, repos)
		})
	}
}

// TestGitHubGateway_GraphQLSearches consolidates the GraphQL search tests into a single table-driven test.
func TestGitHubGateway_GraphQLSearches(t *testing.T) {
	testCases := []struct {
		name           string
		methodToTest   func(gateway *GitHubGateway) (*SearchResult, error)
		queryContains  string
		responseBody   string
		expected       []domain.ContributionRecord
		expectError    bool
		expectedErrMsg string
	}{
		{
			name: "SearchPullRequests - happy path",
			methodToTest: func(gateway *GitHubGateway) (*SearchResult, error) {
				return gateway.SearchPullRequests(context.Background(), octocat, january, false, 10)
			},
			queryContains: "author:octocat is:pr created:2024-01-01..2024-01-31 is:public",
			responseBody: `{"data":{"search":{"pageInfo":{"hasNextPage":false},"nodes":[
				{"__typename":"PullRequest","number":7,"title":"Add cache","state":"MERGED","createdAt":"2024-01-05T10:00:00Z","mergedAt":"2024-01-06T10:00:00Z","url":"https://github.com/org/repo-a/pull/7","repository":{"nameWithOwner":"org/repo-a","url":"https://github.com/org/repo-a","isPrivate":false}}
			]}}}`,
			expected: []domain.ContributionRecord{{
				Repository: "org/repo-a",
				Kind:       domain.KindPullRequest,
				Timestamp:  time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC),
				Title:      "Add cache",
				Identifier: "7",
				State:      "merged",
				URL:        "https://github.com/org/repo-a/pull/7",
			}},
		},
		{
			name: "SearchIssues - happy path",
			methodToTest: func(gateway *GitHubGateway) (*SearchResult, error) {
				return gateway.SearchIssues(context.Background(), octocat, january, true, 10)
			},
			queryContains: "author:octocat is:issue created:2024-01-01..2024-01-31",
			responseBody: `{"data":{"search":{"pageInfo":{"hasNextPage":false},"nodes":[
				{"__typename":"Issue","number":3,"title":"Broken link","state":"OPEN","createdAt":"2024-01-08T00:00:00Z","url":"u","repository":{"nameWithOwner":"org/repo-b","url":"r","isPrivate":true}}
			]}}}`,
			expected: []domain.ContributionRecord{{
				Repository: "org/repo-b",
				Kind:       domain.KindIssue,
				Timestamp:  time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
				Title:      "Broken link",
				Identifier: "3",
				State:      "open",
				URL:        "u",
			}},
		},
		{
			name: "SearchReviews - keeps reviews inside the window",
			methodToTest: func(gateway *GitHubGateway) (*SearchResult, error) {
				return gateway.SearchReviews(context.Background(), octocat, january, true, 10)
			},
			queryContains: "reviewed-by:octocat is:pr updated:2024-01-01..2024-01-31",
			responseBody: `{"data":{"search":{"pageInfo":{"hasNextPage":false},"nodes":[
				{"__typename":"PullRequest","number":12,"title":"Bump deps","state":"OPEN","createdAt":"2023-12-01T00:00:00Z","url":"p","repository":{"nameWithOwner":"org/repo-c","url":"r","isPrivate":false},
				 "reviews":{"nodes":[
					{"databaseId":555,"state":"APPROVED","submittedAt":"2024-01-20T00:00:00Z","url":"rv"},
					{"databaseId":554,"state":"COMMENTED","submittedAt":"2023-12-02T00:00:00Z","url":"old"}
				 ]}}
			]}}}`,
			expected: []domain.ContributionRecord{{
				Repository: "org/repo-c",
				Kind:       domain.KindReview,
				Timestamp:  time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC),
				Title:      "Bump deps",
				Identifier: "12/555",
				State:      "approved",
				URL:        "rv",
			}},
		},
		{
			name: "SearchPullRequests - error case",
			methodToTest: func(gateway *GitHubGateway) (*SearchResult, error) {
				return gateway.SearchPullRequests(context.Background(), octocat, january, false, 10)
			},
			queryContains:  "author:octocat",
			responseBody:   `{"errors":[{"message":"Something went wrong"}]}`,
			expectError:    true,
			expectedErrMsg: "failed to execute GraphQL query",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange: set up a handler that checks the query and returns the specified response.
			handler := func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/graphql", r.URL.Path)
				body, err := io.ReadAll(r.Body)
				require.NoError(t, err)
				assert.Contains(t, string(body), tc.queryContains)

				w.WriteHeader(http.StatusOK)
				fmt.Fprint(w, tc.responseBody)
			}
			gateway := setupTestGateway(t, http.HandlerFunc(handler))

			// Act: call the method under test.
			result, err := tc.methodToTest(gateway)

			// Assert: check the results.
			if tc.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tc.expectedErrMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, result.Records)
			require.Len(t, result.Repositories, 1)
			assert.Equal(t, tc.expected[0].Repository, result.Repositories[0].FullName)
		})
	}
}

func TestGitHubGateway_SearchPagination(t *testing.T) {
	calls := 0
	gateway := setupTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprintf(w, `{"data":{"search":{"pageInfo":{"hasNextPage":true,"endCursor":"c%d"},"nodes":[
			{"__typename":"Issue","number":%d,"title":"t","state":"OPEN","createdAt":"2024-01-08T00:00:00Z","repository":{"nameWithOwner":"org/repo-a"}}
		]}}}`, calls, calls)
	}))

	result, err := gateway.SearchIssues(context.Background(), octocat, january, true, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, result.Records, 3)
}

func TestGitHubGateway_QueryRepositoryBatch(t *testing.T) {
	repos := []domain.Repository{{FullName: "org/repo-a"}, {FullName: "org/repo-b"}}

	gateway := setupTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		for i := 0; i < BatchSize; i++ {
			assert.Contains(t, string(body), fmt.Sprintf("repo%d: repository(owner: $owner%d, name: $name%d)", i, i, i))
		}
		assert.Contains(t, string(body), `"owner4":"org"`)
		assert.Contains(t, string(body), `"name4":"repo-b"`)
		assert.Contains(t, string(body), `"withReviews":false`)

		fmt.Fprint(w, `{"data":{
			"repo0":{"nameWithOwner":"org/repo-a","url":"a","isPrivate":false,
				"defaultBranchRef":{"target":{"history":{"nodes":[
					{"oid":"abc1234567","messageHeadline":"Initial","authoredDate":"2024-01-03T00:00:00Z","url":"c"}
				]}}},
				"pullRequests":{"nodes":[
					{"number":1,"title":"Mine","state":"OPEN","createdAt":"2024-01-04T00:00:00Z","url":"p1","author":{"login":"octocat"}},
					{"number":2,"title":"Theirs","state":"OPEN","createdAt":"2024-01-04T00:00:00Z","url":"p2","author":{"login":"hubot"}}
				]},
				"issues":{"nodes":[
					{"number":3,"title":"Old","state":"OPEN","createdAt":"2023-06-01T00:00:00Z","url":"i3"}
				]}},
			"repo1":null,
			"repo2":null,"repo3":null,"repo4":null
		}}`)
	}))

	caps := domain.Caps{Commits: 50, PullRequests: 20, Issues: 20}
	records, err := gateway.QueryRepositoryBatch(context.Background(), octocat, repos, january, caps)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, domain.KindCommit, records[0].Kind)
	assert.Equal(t, "abc1234567", records[0].Identifier)
	assert.Equal(t, domain.KindPullRequest, records[1].Kind)
	assert.Equal(t, "1", records[1].Identifier)
}

func TestGitHubGateway_QueryRepositoryBatchRejectsOversizedBatch(t *testing.T) {
	gateway := setupTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))
	repos := make([]domain.Repository, BatchSize+1)
	_, err := gateway.QueryRepositoryBatch(context.Background(), octocat, repos, january, domain.DefaultCaps)
	assert.Error(t, err)
}

func TestRepositoryFromAPIURL(t *testing.T) {
	assert.Equal(t, "org/repo", repositoryFromAPIURL("https://api.github.com/repos/org/repo"))
	assert.Equal(t, "org/repo", repositoryFromAPIURL("https://ghe.example.com/api/v3/repos/org/repo"))
	assert.Equal(t, "", repositoryFromAPIURL("https://api.github.com/users/org"))
}
