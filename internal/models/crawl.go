package models

import "time"

// Phase is one named crawl pass over the portal search
type Phase struct {
	Name          string `json:"name"`
	Label         string `json:"label"`
	Path          string `json:"path"`         // appended to the search base, e.g. "/contracted"
	ParamKey      string `json:"param_key"`    // query key that receives the contractor name
	ExtraParams   string `json:"extra_params"` // static, already-encoded, e.g. "&workend=%3E0"
	DefaultStatus Status `json:"default_status"`
	Role          Role   `json:"role"`
}

// CrawlSession is process-local state for one contractor's crawl
type CrawlSession struct {
	RunID        string
	ContractorID int64
	Title        string
	Phase        *Phase
	Page         int
	seen         map[string]struct{}
}

// NewCrawlSession creates an empty session for one contractor
func NewCrawlSession(runID string, contractorID int64, title string) *CrawlSession {
	return &CrawlSession{
		RunID:        runID,
		ContractorID: contractorID,
		Title:        title,
		seen:         make(map[string]struct{}),
	}
}

// MarkSeen records externalID and reports whether it was new to this session.
// Empty ids are never suppressed.
func (s *CrawlSession) MarkSeen(externalID string) bool {
	if externalID == "" {
		return true
	}
	if _, ok := s.seen[externalID]; ok {
		return false
	}
	s.seen[externalID] = struct{}{}
	return true
}

// PhaseStats are the counters of one phase
type PhaseStats struct {
	Name         string `json:"name"`
	Label        string `json:"label"`
	PagesScraped int    `json:"pages_scraped"`
	RecordsFound int    `json:"records_found"`
	RecordsSaved int    `json:"records_saved"`
	Errors       int    `json:"errors"`
	Aborted      bool   `json:"aborted,omitempty"`
	AbortReason  string `json:"abort_reason,omitempty"`
}

// RunStats summarise one contractor's harvest
type RunStats struct {
	RunID        string       `json:"run_id,omitempty"`
	ContractorID int64        `json:"contractor_id,omitempty"`
	Contractor   string       `json:"contractor,omitempty"`
	PagesScraped int          `json:"pages_scraped"`
	RecordsFound int          `json:"records_found"`
	RecordsSaved int          `json:"records_saved"`
	Errors       int          `json:"errors"`
	Phases       []PhaseStats `json:"phases,omitempty"`
	StartedAt    time.Time    `json:"started_at"`
	FinishedAt   time.Time    `json:"finished_at"`
	Error        string       `json:"error,omitempty"`
}

// AddPhase folds a finished phase into the run counters
func (r *RunStats) AddPhase(p PhaseStats) {
	r.PagesScraped += p.PagesScraped
	r.RecordsFound += p.RecordsFound
	r.RecordsSaved += p.RecordsSaved
	r.Errors += p.Errors
	r.Phases = append(r.Phases, p)
}

// BatchStats summarise a sequential multi-contractor batch
type BatchStats struct {
	RunID        string     `json:"run_id"`
	Contractors  int        `json:"contractors"`
	Succeeded    int        `json:"succeeded"`
	Failed       int        `json:"failed"`
	PagesScraped int        `json:"pages_scraped"`
	RecordsFound int        `json:"records_found"`
	RecordsSaved int        `json:"records_saved"`
	Errors       int        `json:"errors"`
	Runs         []RunStats `json:"runs"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   time.Time  `json:"finished_at"`
}

// AddRun folds one contractor's run into the batch totals
func (b *BatchStats) AddRun(r RunStats) {
	b.Contractors++
	if r.Error == "" {
		b.Succeeded++
	} else {
		b.Failed++
	}
	b.PagesScraped += r.PagesScraped
	b.RecordsFound += r.RecordsFound
	b.RecordsSaved += r.RecordsSaved
	b.Errors += r.Errors
	b.Runs = append(b.Runs, r)
}

// Cookie is a browser cookie in a storage-neutral shape
type Cookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain"`
	Path     string    `json:"path"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure"`
	HTTPOnly bool      `json:"http_only"`
	SameSite string    `json:"same_site,omitempty"`
}

// SessionRecord is the persisted portal session
type SessionRecord struct {
	Key       string    `json:"key" badgerhold:"key"`
	Cookies   []Cookie  `json:"cookies"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListStats summarise one contractor list crawl
type ListStats struct {
	RunID              string    `json:"run_id"`
	PagesScraped       int       `json:"pages_scraped"`
	CardsFound         int       `json:"cards_found"`
	ContractorsFound   int       `json:"contractors_found"`
	ContractorsNew     int       `json:"contractors_new"`
	ContractorsUpdated int       `json:"contractors_updated"`
	RecordsSaved       int       `json:"records_saved"`
	Errors             int       `json:"errors"`
	StartedAt          time.Time `json:"started_at"`
	FinishedAt         time.Time `json:"finished_at"`
	Error              string    `json:"error,omitempty"`
}
