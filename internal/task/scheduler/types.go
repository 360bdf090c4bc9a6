package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"edgesched/internal/task/engine"
	logx "edgesched/pkg/logx"
)

// Config controls the trigger service.
type Config struct {
	Timezone string // IANA TZ, e.g. "Europe/Berlin"; empty means Local
}

// Enqueuer accepts fired work. *engine.Service implements it.
type Enqueuer interface {
	Enqueue(t engine.Task) error
}

// SpecParser accepts 5-field and 6-field (with seconds) cron specs and
// descriptors such as "@hourly". Config validation uses the same parser.
var SpecParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

const (
	onceRetryBase = time.Second
	onceRetryMax  = time.Minute
)

type Job = func(ctx context.Context) error

type cronDef struct {
	name    string
	spec    string
	timeout time.Duration
	job     Job
	entryID cron.EntryID
}

// onceDef outlives its timer so Stop/Start can re-arm it.
type onceDef struct {
	at      time.Time
	timeout time.Duration
	job     Job
	ver     uint64
	timer   *time.Timer
	// retries counts rejected enqueues of this definition.
	retries     int
	dispatching bool
}

type Service struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config
	loc *time.Location
	eng Enqueuer

	parser  cron.Parser
	c       *cron.Cron
	crons   []cronDef
	once    map[string]*onceDef
	verSeq  uint64
	running bool

	retryBase time.Duration

	enqMu       sync.Mutex
	lastEnqWarn map[string]time.Time
}

type ScheduleInfo struct {
	Name    string
	Kind    string // "cron" or "once"
	Spec    string
	Timeout time.Duration
	Next    time.Time
	Prev    time.Time
}

type Snapshot struct {
	Running   bool
	Timezone  string
	Schedules []ScheduleInfo
}
