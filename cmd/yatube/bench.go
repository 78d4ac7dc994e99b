package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/d60-Lab/yatube/internal/cache"
	"github.com/d60-Lab/yatube/internal/model"
	"github.com/d60-Lab/yatube/internal/repository"
	"github.com/d60-Lab/yatube/internal/service"
	"github.com/d60-Lab/yatube/internal/view"
	"github.com/d60-Lab/yatube/pkg/database"
)

var (
	benchPosts    int
	benchRequests int
	benchUsers    int
	benchConc     int

	benchCmd = &cobra.Command{
		Use:   "bench",
		Short: "Measure feed and relationship latency against the configured stores",
	}
	benchFeedCmd = &cobra.Command{
		Use:   "feed",
		Short: "Index feed latency with and without the page cache",
		RunE:  withApp(runFeedBench),
	}
	benchFollowCmd = &cobra.Command{
		Use:   "follow",
		Short: "Follow write latency for many readers of one author",
		RunE:  withApp(runFollowBench),
	}
)

func init() {
	benchFeedCmd.Flags().IntVar(&benchPosts, "posts", 2000, "posts to seed")
	benchFeedCmd.Flags().IntVar(&benchRequests, "requests", 3000, "index requests per scenario")
	benchFollowCmd.Flags().IntVar(&benchUsers, "users", 5000, "followers to seed")
	benchFollowCmd.Flags().IntVar(&benchConc, "conc", 4, "concurrent workers")
	benchCmd.AddCommand(benchFeedCmd, benchFollowCmd)
}

func runFeedBench(ctx context.Context, a *app, _ []string) error {
	mustDo(database.Migrate(a.db))

	author := seedUser(ctx, a, "bench_author")
	base := time.Now()
	rows := make([]model.Post, benchPosts)
	for i := range rows {
		rows[i] = model.Post{
			ID:        uuid.NewString(),
			Text:      fmt.Sprintf("bench post %d", i),
			AuthorID:  author.ID,
			CreatedAt: base.Add(-time.Duration(i) * time.Second),
		}
	}
	mustDo(a.db.WithContext(ctx).CreateInBatches(&rows, 500).Error)
	fmt.Printf("seeded %d posts\n", benchPosts)

	feeds := service.NewFeedService(
		repository.NewPostRepository(a.db),
		repository.NewGroupRepository(a.db),
		repository.NewUserRepository(a.db),
		repository.NewCommentRepository(a.db),
		service.NewRelationshipService(repository.NewFollowRepository(a.db)),
		a.cfg.Feed.PageSize,
	)
	views := view.NewBuilder(a.blobs)
	renderer := view.JSONRenderer{}
	lastPage := benchPosts/feeds.PageSize() + 1

	render := func(number int) cache.RenderFunc {
		return func(ctx context.Context) ([]byte, error) {
			page, err := feeds.ListPosts(ctx, repository.PostFilter{}, number)
			if err != nil {
				return nil, err
			}
			return renderer.Render(view.IndexPage, views.Index(page))
		}
	}

	pages := makePageNumbers(benchRequests, lastPage)

	noCache := timeRequests(pages, func(n int) error {
		_, err := render(n)(ctx)
		return err
	})

	mustDo(a.pages.ClearAll(ctx))
	before := a.pages.Stats()
	ttl := a.cfg.Cache.IndexTTL
	if ttl <= 0 {
		ttl = 20 * time.Second
	}
	cached := timeRequests(pages, func(n int) error {
		_, err := a.pages.GetOrRender(ctx, cache.RouteKey("/", n), ttl, render(n))
		return err
	})
	after := a.pages.Stats()

	fmt.Printf("\nIndex feed latency (%d req, %d posts, backend=%s)\n", benchRequests, benchPosts, a.cfg.Cache.Backend)
	fmt.Printf("%-12s avg=%v p95=%v p99=%v\n", "No cache", avg(noCache), pct(noCache, 0.95), pct(noCache, 0.99))
	fmt.Printf("%-12s avg=%v p95=%v p99=%v hits=%d misses=%d renders=%d\n", "Page cache",
		avg(cached), pct(cached, 0.95), pct(cached, 0.99),
		after.Hits-before.Hits, after.Misses-before.Misses, after.Renders-before.Renders)
	return nil
}

func runFollowBench(ctx context.Context, a *app, _ []string) error {
	mustDo(database.Migrate(a.db))

	celeb := seedUser(ctx, a, "bench_celeb")
	users := make([]model.User, benchUsers)
	for i := range users {
		id := uuid.NewString()
		users[i] = model.User{ID: id, Username: "bench_" + id[:8]}
	}
	mustDo(a.db.WithContext(ctx).CreateInBatches(&users, 1000).Error)

	relations := service.NewRelationshipService(repository.NewFollowRepository(a.db))

	workers := benchConc
	if workers < 1 {
		workers = 1
	}
	feed := make(chan int, len(users))
	for i := range users {
		feed <- i
	}
	close(feed)

	var (
		mu   sync.Mutex
		recs = make([]time.Duration, 0, len(users))
		wg   sync.WaitGroup
	)
	t0 := time.Now()
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range feed {
				st := time.Now()
				err := relations.Follow(ctx, users[i].ID, celeb.ID)
				d := time.Since(st)
				if err != nil {
					panic(err)
				}
				mu.Lock()
				recs = append(recs, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	total := time.Since(t0)

	followers, _, err := relations.Counts(ctx, celeb.ID)
	if err != nil {
		return err
	}
	fmt.Printf("\nFollow latency (%d users, conc=%d, total=%v)\n", benchUsers, workers, total)
	fmt.Printf("avg=%v p95=%v p99=%v followers=%d\n", avg(recs), pct(recs, 0.95), pct(recs, 0.99), followers)
	return nil
}

func seedUser(ctx context.Context, a *app, username string) *model.User {
	u := &model.User{ID: uuid.NewString(), Username: username}
	mustDo(a.db.WithContext(ctx).Where(model.User{Username: username}).FirstOrCreate(u).Error)
	return u
}

func timeRequests(pages []int, call func(int) error) []time.Duration {
	out := make([]time.Duration, 0, len(pages))
	for _, n := range pages {
		start := time.Now()
		mustDo(call(n))
		out = append(out, time.Since(start))
	}
	return out
}

// makePageNumbers 大部分请求落在首页，其余随机翻页
func makePageNumbers(n, last int) []int {
	out := make([]int, n)
	rnd := rand.New(rand.NewSource(42))
	for i := range out {
		out[i] = 1
		if rnd.Float64() > 0.72 {
			out[i] = 2 + rnd.Intn(max(last-1, 1))
		}
	}
	return out
}

func avg(vs []time.Duration) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	var sum time.Duration
	for _, v := range vs {
		sum += v
	}
	return sum / time.Duration(len(vs))
}

func pct(vs []time.Duration, p float64) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), vs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func mustDo(err error) {
	if err != nil {
		panic(err)
	}
}
