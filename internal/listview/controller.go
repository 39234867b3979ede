package listview

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/meditrack/internal/model"
	"github.com/jwalitptl/meditrack/pkg/metrics"
)

const DefaultPageSize = 10

// Fetcher loads one page of patients.
type Fetcher interface {
	List(ctx context.Context, params model.ListParams) (*model.PatientPage, error)
}

type Options struct {
	PageSize     int
	FetchTimeout time.Duration
	Metrics      *metrics.Metrics
	Logger       zerolog.Logger
}

// State is a consistent snapshot of the controller.
type State struct {
	SearchTerm  string          `json:"searchTerm"`
	Page        int             `json:"page"`
	PageSize    int             `json:"pageSize"`
	Rows        []model.Patient `json:"rows"`
	Total       int             `json:"total"`
	Source      Source          `json:"source"`
	Loading     bool            `json:"loading"`
	Notice      *Notice         `json:"notice,omitempty"`
	EndReached  bool            `json:"endReached"`
	PrevEnabled bool            `json:"prevEnabled"`
	NextEnabled bool            `json:"nextEnabled"`
}

// Ticket tracks one issued fetch.
type Ticket struct {
	Seq  uint64
	done <-chan struct{}
}

// Done is closed once the fetch has completed, whether its result was
// applied or discarded as stale.
func (t Ticket) Done() <-chan struct{} {
	return t.done
}

// Controller owns the search term and page of one patient table and the
// rows it shows. Every change of (search term, page) issues a fetch; only
// the most recently issued fetch may update the rows.
type Controller struct {
	fetcher Fetcher
	opts    Options

	mu       sync.Mutex
	search   string
	page     int
	params   model.ListParams
	seq      uint64
	inflight map[uint64]chan struct{}
	rows     []model.Patient
	total    int
	source   Source
	loading  bool
	notice   *Notice
	end      bool
}

func NewController(fetcher Fetcher, opts Options) *Controller {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Second
	}
	return &Controller{
		fetcher:  fetcher,
		opts:     opts,
		page:     1,
		inflight: make(map[uint64]chan struct{}),
	}
}

// SetSearch changes the search term and goes back to the first page.
func (c *Controller) SetSearch(ctx context.Context, term string) Ticket {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.search = term
	c.page = 1
	return c.issueLocked(ctx)
}

// SetPage moves to page n. Pages start at 1.
func (c *Controller) SetPage(ctx context.Context, n int) Ticket {
	n = c.clampPage(n)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.page = n
	return c.issueLocked(ctx)
}

// Apply brings the controller to (term, page), issuing a fetch only when
// something changed or nothing has been fetched yet. A changed term always
// lands on page 1.
func (c *Controller) Apply(ctx context.Context, term string, page int) Ticket {
	page = c.clampPage(page)
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case term != c.search:
		c.search = term
		c.page = 1
	case page != c.page:
		c.page = page
	case c.seq == 0:
	default:
		return c.currentLocked()
	}
	return c.issueLocked(ctx)
}

// clampPage keeps n within [1, last page whose skip fits in an int].
func (c *Controller) clampPage(n int) int {
	if n < 1 {
		return 1
	}
	if last := math.MaxInt / c.opts.PageSize; n > last {
		return last
	}
	return n
}

// Retry re-issues the current request unchanged.
func (c *Controller) Retry(ctx context.Context) Ticket {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.issueLocked(ctx)
}

func (c *Controller) DismissNotice() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notice = nil
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows := make([]model.Patient, len(c.rows))
	copy(rows, c.rows)
	var notice *Notice
	if c.notice != nil {
		n := *c.notice
		notice = &n
	}
	return State{
		SearchTerm:  c.search,
		Page:        c.page,
		PageSize:    c.opts.PageSize,
		Rows:        rows,
		Total:       c.total,
		Source:      c.source,
		Loading:     c.loading,
		Notice:      notice,
		EndReached:  c.end,
		PrevEnabled: c.page > 1,
		NextEnabled: true,
	}
}

func (c *Controller) issueLocked(ctx context.Context) Ticket {
	c.seq++
	seq := c.seq
	params := model.ListParams{
		Search: c.search,
		Skip:   (c.page - 1) * c.opts.PageSize,
		Limit:  c.opts.PageSize,
	}
	c.params = params
	c.loading = true

	done := make(chan struct{})
	c.inflight[seq] = done

	// The fetch may outlive the request that triggered it.
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.FetchTimeout)
	go func() {
		defer cancel()
		page, err := c.fetcher.List(fetchCtx, params)
		c.complete(seq, params, page, err)
	}()

	return Ticket{Seq: seq, done: done}
}

// currentLocked returns a ticket for the latest fetch.
func (c *Controller) currentLocked() Ticket {
	if done, ok := c.inflight[c.seq]; ok {
		return Ticket{Seq: c.seq, done: done}
	}
	closed := make(chan struct{})
	close(closed)
	return Ticket{Seq: c.seq, done: closed}
}

func (c *Controller) complete(seq uint64, params model.ListParams, page *model.PatientPage, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if done, ok := c.inflight[seq]; ok {
		close(done)
		delete(c.inflight, seq)
	}

	if seq != c.seq {
		c.count("stale")
		if c.opts.Metrics != nil {
			c.opts.Metrics.ListStaleDiscards.Inc()
		}
		c.opts.Logger.Debug().Uint64("seq", seq).Uint64("latest", c.seq).Msg("discarding stale patient list")
		return
	}

	d := Decide(params, page, err)
	c.rows = d.Rows
	c.total = d.Total
	c.source = d.Source
	c.notice = d.Notice
	c.end = d.EndReached
	c.loading = false

	if err != nil {
		c.count("error")
		c.opts.Logger.Warn().Err(err).Str("search", params.Search).Int("skip", params.Skip).Msg("patient list fetch failed")
	} else {
		c.count("success")
	}
	if d.FallbackReason != "" && c.opts.Metrics != nil {
		c.opts.Metrics.ListFallbacks.WithLabelValues(d.FallbackReason).Inc()
	}
}

func (c *Controller) count(outcome string) {
	if c.opts.Metrics != nil {
		c.opts.Metrics.ListFetches.WithLabelValues(outcome).Inc()
	}
}
