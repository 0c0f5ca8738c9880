package scenario

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/procsim/procsim/sim"
	"github.com/procsim/procsim/sim/stats"
	"github.com/procsim/procsim/sim/trace"
	"github.com/procsim/procsim/sim/workload"
	"github.com/sirupsen/logrus"
)

// Customer class priorities.
const (
	PriorityLow  int64 = 1
	PriorityHigh int64 = 2
)

// classNames indexes by priority.
var classNames = map[int64]string{PriorityLow: "low", PriorityHigh: "high"}

// Queueing is one trial of a multi-server queue. Customers arrive from a
// source process, take one server from a ResourcePool and hold it for their
// service time. A preempted customer goes back to the queue with the service
// it has left.
type Queueing struct {
	cfg     Config
	sim     *sim.Simulator
	servers *sim.ResourcePool
	log     *logrus.Logger

	arrival workload.Sampler
	service workload.Sampler
	rngArr  *rand.Rand
	rngSvc  *rand.Rand
	rngCls  *rand.Rand

	waits    *stats.Dataset
	sojourns *stats.Dataset
	byClass  map[string]*stats.Dataset
	queueLen *stats.Timeseries
	waiting  int

	arrived     int
	served      int
	preemptions int
}

// NewQueueing builds a trial on s. The configuration must be valid.
func NewQueueing(s *sim.Simulator, cfg Config) (*Queueing, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	arrival, err := workload.NewSampler(cfg.Arrival)
	if err != nil {
		return nil, fmt.Errorf("arrival: %w", err)
	}
	service, err := workload.NewSampler(cfg.Service)
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	q := &Queueing{
		cfg:      cfg,
		sim:      s,
		servers:  sim.NewResourcePool(s, "servers", cfg.Servers),
		log:      s.Logger(),
		arrival:  arrival,
		service:  service,
		rngArr:   s.RNG().ForSubsystem(sim.SubsystemArrivals),
		rngSvc:   s.RNG().ForSubsystem(sim.SubsystemService),
		rngCls:   s.RNG().ForSubsystem(sim.SubsystemClasses),
		waits:    stats.NewDataset(),
		sojourns: stats.NewDataset(),
		byClass:  map[string]*stats.Dataset{"low": stats.NewDataset(), "high": stats.NewDataset()},
		queueLen: stats.NewTimeseries(),
	}
	q.servers.StartRecording()
	q.queueLen.Add(0, s.Now())
	return q, nil
}

// Servers returns the server pool.
func (q *Queueing) Servers() *sim.ResourcePool { return q.servers }

// Start launches the arrival source and schedules the end of the trial.
func (q *Queueing) Start() {
	sim.NewProcess(q.sim, "source", q.source, nil, 0).Start()
	q.sim.ScheduleStop(q.sim.Now() + q.cfg.Horizon)
}

func (q *Queueing) source(p *sim.Process, _ any) any {
	for {
		if p.Hold(q.arrival.Sample(q.rngArr)) != sim.SignalSuccess {
			return nil
		}
		q.arrived++
		priority := PriorityLow
		if q.rngCls.Float64() < q.cfg.HighPriority {
			priority = PriorityHigh
		}
		c := &customer{arrivedAt: q.sim.Now(), service: q.service.Sample(q.rngSvc)}
		name := fmt.Sprintf("customer-%d", q.arrived)
		q.log.Debugf("[%.3f] %s arrives (class %s, service %.3f)", q.sim.Now(), name, classNames[priority], c.service)
		sim.NewProcess(q.sim, name, q.serve, c, priority).Start()
	}
}

type customer struct {
	arrivedAt float64
	service   float64
	waited    float64
}

func (q *Queueing) serve(p *sim.Process, arg any) any {
	c := arg.(*customer)
	remaining := c.service
	for {
		queuedAt := q.sim.Now()
		q.setWaiting(+1)
		var sig sim.Signal
		if q.cfg.Preempt {
			sig = q.servers.Preempt(p, 1)
		} else {
			sig = q.servers.Acquire(p, 1)
		}
		q.setWaiting(-1)
		if sig != sim.SignalSuccess {
			q.log.Debugf("[%.3f] %s leaves the queue: %s", q.sim.Now(), p.Name(), sig)
			return nil
		}
		c.waited += q.sim.Now() - queuedAt

		startedAt := q.sim.Now()
		sig = p.Hold(remaining)
		if sig == sim.SignalPreempted {
			q.preemptions++
			remaining = math.Max(0, remaining-(q.sim.Now()-startedAt))
			q.log.Debugf("[%.3f] %s preempted with %.3f left", q.sim.Now(), p.Name(), remaining)
			continue
		}
		q.servers.Release(p, 1)
		if sig != sim.SignalSuccess {
			return nil
		}
		break
	}
	q.served++
	q.waits.Add(c.waited)
	q.byClass[classNames[p.Priority()]].Add(c.waited)
	q.sojourns.Add(q.sim.Now() - c.arrivedAt)
	return nil
}

func (q *Queueing) setWaiting(delta int) {
	q.waiting += delta
	q.queueLen.Add(float64(q.waiting), q.sim.Now())
}

// Result is the outcome of one trial.
type Result struct {
	Trial       int                      `json:"trial"`
	Seed        int64                    `json:"seed"`
	Arrived     int                      `json:"arrived"`
	Served      int                      `json:"served"`
	Preemptions int                      `json:"preemptions"`
	Wait        stats.Summary            `json:"wait"`
	Sojourn     stats.Summary            `json:"sojourn"`
	WaitByClass map[string]stats.Summary `json:"wait_by_class"`
	// Utilization is the time-averaged fraction of busy servers.
	Utilization float64             `json:"utilization"`
	BusyServers stats.Summary       `json:"busy_servers"`
	QueueLength stats.Summary       `json:"queue_length"`
	Events      uint64              `json:"events"`
	EndTime     float64             `json:"end_time"`
	Trace       *trace.TraceSummary `json:"trace,omitempty"`
}

// Result summarizes the trial so far.
func (q *Queueing) Result() Result {
	end := q.sim.Now()
	busy := q.servers.History().Summarize(end)
	r := Result{
		Arrived:     q.arrived,
		Served:      q.served,
		Preemptions: q.preemptions,
		Wait:        q.waits.Summary(),
		Sojourn:     q.sojourns.Summary(),
		WaitByClass: make(map[string]stats.Summary, len(q.byClass)),
		Utilization: busy.Mean / float64(q.cfg.Servers),
		BusyServers: busy,
		QueueLength: q.queueLen.Summarize(end),
		Events:      q.sim.Dispatched(),
		EndTime:     end,
	}
	for name, d := range q.byClass {
		r.WaitByClass[name] = d.Summary()
	}
	if st := q.sim.Trace(); st != nil {
		r.Trace = trace.Summarize(st)
	}
	return r
}

// TrialOptions configures RunTrial.
type TrialOptions struct {
	Trial  int
	Seed   int64
	Logger *logrus.Logger
	Trace  trace.TraceConfig
}

// RunTrial runs one trial of cfg to its horizon on a fresh simulator.
func RunTrial(cfg Config, opts TrialOptions) (Result, error) {
	s := sim.NewSimulator(sim.Config{Seed: opts.Seed, Logger: opts.Logger, Trace: opts.Trace})
	defer s.Close()
	q, err := NewQueueing(s, cfg)
	if err != nil {
		return Result{}, err
	}
	q.Start()
	s.Run()
	r := q.Result()
	r.Trial, r.Seed = opts.Trial, opts.Seed
	s.Logger().Infof("trial %d: %d arrived, %d served, utilization %.3f", opts.Trial, r.Arrived, r.Served, r.Utilization)
	return r, nil
}
