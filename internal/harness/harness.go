package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/waypost-app/pubflow/internal/ledger"
	"github.com/waypost-app/pubflow/internal/ledger/ledgertest"
	"github.com/waypost-app/pubflow/internal/list"
	"github.com/waypost-app/pubflow/internal/profile"
	"github.com/waypost-app/pubflow/internal/publish"
	"github.com/waypost-app/pubflow/internal/safeop"
	"github.com/waypost-app/pubflow/internal/testutil"
	"github.com/waypost-app/pubflow/internal/workflow"
)

// Run executes a scenario in a fresh in-memory ledger and returns the trace
// and final state. Topic ids are allocated deterministically, the propagation
// wait and retry backoff are zeroed, and steps advance inline, so two runs of
// the same scenario produce identical results.
func Run(sc *Scenario) (*Result, error) {
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	fake := ledgertest.New()
	cache := list.NewCache(list.DefaultCacheTTL)

	profTopic := fake.Seed("Waypost Profile")
	prof := profile.NewStore(fake, profTopic, log)

	kind, err := list.ParseKind(sc.Draft.Kind)
	if err != nil {
		return nil, err
	}

	// Seed the pre-existing list, linked into the profile, before any fault
	// scripting so setup cannot consume a scripted failure.
	var listTopic ledger.TopicID
	if len(sc.Existing) > 0 {
		items := make([]list.Item, len(sc.Existing))
		for i, it := range sc.Existing {
			items[i] = list.Item{Name: it.Name, ID: ledger.TopicID(it.ID)}
		}
		payload, err := list.EncodeItems(kind, items)
		if err != nil {
			return nil, fmt.Errorf("seed existing list: %w", err)
		}
		listTopic = fake.Seed(kind.TopicMemo(), payload)
		if _, err := prof.Updater()(ctx, listTopic, kind); err != nil {
			return nil, fmt.Errorf("link existing list: %w", err)
		}
	}

	coord := list.NewCoordinator(fake, cache, kind, listTopic,
		list.WithPropagationWait(0),
		list.WithLogger(log),
	)
	if !listTopic.Empty() {
		if err := coord.Load(ctx, listTopic); err != nil {
			return nil, fmt.Errorf("load existing list: %w", err)
		}
	}

	scriptFaults(fake, sc.Faults)

	runner := safeop.New()
	runner.SetSleeper(testutil.NoSleep)
	runner.SetLogger(log)

	result := &Result{Scenario: sc.Name, Trace: []TraceEvent{}}
	var prev []workflow.Status

	draft := publish.Draft{
		Kind:        kind,
		Name:        sc.Draft.Name,
		Description: sc.Draft.Description,
	}
	if sc.Draft.Media != "" {
		draft.Media = []byte("binary:" + sc.Draft.Media)
		draft.MediaName = sc.Draft.Media
	}

	flow, err := publish.New(publish.Config{
		Client:      fake,
		Binary:      fake,
		Coordinator: coord,
		LinkProfile: prof.Updater(),
		Signer:      ledgertest.StaticSigner("0.0.7"),
		Draft:       draft,
		Runner:      runner,
		Scheduler:   workflow.ImmediateScheduler{},
		OnChange: func(p workflow.Plan) {
			if prev == nil {
				prev = make([]workflow.Status, len(p))
			}
			for i := range p {
				if p[i].Status != prev[i] {
					ev := TraceEvent{Step: string(p[i].Name), Status: p[i].Status.String()}
					if p[i].Status == workflow.StatusError {
						ev.Message = p[i].Message
					}
					result.Trace = append(result.Trace, ev)
				}
				prev[i] = p[i].Status
			}
		},
		Logger: log,
	})
	if err != nil {
		return nil, err
	}

	eng := flow.Engine()
	eng.ToggleAutoProgress(true)
	eng.Start()
	if err := eng.Drain(ctx); err != nil {
		return nil, err
	}
	if sc.Resume && !eng.Plan().Complete() {
		if err := eng.ResumeAfterError(); err != nil {
			return nil, err
		}
		if err := eng.Drain(ctx); err != nil {
			return nil, err
		}
	}

	return finalize(ctx, result, eng, flow, fake, prof)
}

// scriptFaults translates call-indexed faults into the fake's FIFO queues:
// calls before the failing one get explicit nil (success) entries.
func scriptFaults(fake *ledgertest.Fake, faults []Fault) {
	queues := map[string][]error{}
	for _, f := range faults {
		q := queues[f.Op]
		for len(q) < f.Call {
			q = append(q, nil)
		}
		q[f.Call-1] = errors.New(f.Error)
		queues[f.Op] = q
	}
	if q := queues["submit"]; q != nil {
		fake.FailNextSubmit(q...)
	}
	if q := queues["create"]; q != nil {
		fake.FailNextCreate(q...)
	}
	if q := queues["read"]; q != nil {
		fake.FailNextRead(q...)
	}
	if q := queues["upload"]; q != nil {
		fake.FailNextUpload(q...)
	}
}

func finalize(ctx context.Context, result *Result, eng *workflow.Engine, flow *publish.Flow, fake *ledgertest.Fake, prof *profile.Store) (*Result, error) {
	if eng.Plan().Complete() {
		result.Outcome = "complete"
	} else {
		result.Outcome = "halted"
	}

	res := flow.Result()
	result.PrimaryTopic = string(res.PrimaryTopic)
	result.ListTopic = string(res.ListTopic)

	if !res.ListTopic.Empty() {
		if m, err := fake.ReadLatestMessage(ctx, res.ListTopic); err == nil && m != nil {
			items, isArray, err := list.DecodeItems(flow.Kind(), m.Payload)
			if err == nil && isArray {
				for _, it := range items {
					result.Items = append(result.Items, ItemState{Name: it.Name, ID: string(it.ID)})
				}
			}
		}
	}

	rec, err := prof.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load final profile: %w", err)
	}
	links := map[string]string{}
	for _, k := range list.Kinds {
		if id := rec.ListTopic(k); !id.Empty() {
			links[k.String()] = string(id)
		}
	}
	if len(links) > 0 {
		result.Profile = links
	}
	return result, nil
}
