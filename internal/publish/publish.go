// Package publish assembles concrete publish flows: it binds a draft piece
// of content (a channel or a group, with optional media) to a workflow plan
// whose steps create the content's own topic, upload the media, announce,
// and fold the content into the owning profile's list topic.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/waypost-app/pubflow/internal/ledger"
	"github.com/waypost-app/pubflow/internal/list"
	"github.com/waypost-app/pubflow/internal/safeop"
	"github.com/waypost-app/pubflow/internal/workflow"
)

// Draft is the user's content before any step has run.
type Draft struct {
	// Kind selects the owning list: KindChannels or KindGroups.
	Kind list.Kind

	Name        string
	Description string

	// Media is the optional binary asset; empty means no upload step.
	Media     []byte
	MediaName string
}

// announce is the identifying first message written into a freshly created
// primary topic. Type discriminates content kinds for downstream readers.
type announce struct {
	Type        string `json:"Type"`
	Name        string `json:"Name"`
	Description string `json:"Description,omitempty"`
	Media       string `json:"Media,omitempty"`
}

// Result collects the durable ids a completed (or partially completed) flow
// produced.
type Result struct {
	PrimaryTopic ledger.TopicID
	ListTopic    ledger.TopicID
	AssetRef     ledger.AssetRef
}

// Config assembles a Flow.
type Config struct {
	Client ledger.Client
	Binary ledger.BinaryStore

	// Coordinator manages the draft kind's list topic. It must be built
	// without a back-reference updater: linking is this flow's own final
	// step, bound separately so it can be retried on its own.
	Coordinator *list.Coordinator

	// LinkProfile persists the (possibly new) list topic id into the
	// owning profile.
	LinkProfile list.BackRefUpdater

	Signer ledger.Signer
	Draft  Draft

	// Engine knobs, passed through to workflow.Config.
	Runner     *safeop.Runner
	Scheduler  workflow.Scheduler
	OnChange   func(workflow.Plan)
	OnNotice   func(string)
	OnComplete func(Result)
	Logger     *slog.Logger
}

// Flow is one publish workflow instance.
type Flow struct {
	engine *workflow.Engine
	coord  *list.Coordinator

	result Result
}

// contentType returns the announce Type discriminator for the draft's kind.
func contentType(kind list.Kind) (string, error) {
	switch kind {
	case list.KindChannels:
		return "Channel", nil
	case list.KindGroups:
		return "Group", nil
	default:
		return "", fmt.Errorf("publish: cannot publish into list kind %s", kind)
	}
}

// New validates the draft, builds the step plan from what already exists,
// and binds each step to its operation.
func New(cfg Config) (*Flow, error) {
	if cfg.Draft.Name == "" {
		return nil, fmt.Errorf("publish: draft needs a name")
	}
	ctype, err := contentType(cfg.Draft.Kind)
	if err != nil {
		return nil, err
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	f := &Flow{coord: cfg.Coordinator}

	plan := workflow.BuildPlan(workflow.PlanInput{
		HasBinaryAsset:       len(cfg.Draft.Media) > 0,
		HasExistingListTopic: cfg.Coordinator.HasTopic(),
	})

	ops := map[workflow.StepName]workflow.Operation{
		workflow.StepCreatePrimary: func(ctx context.Context) error {
			id, err := cfg.Client.CreateTopic(ctx,
				fmt.Sprintf("Waypost %s: %s", ctype, cfg.Draft.Name),
				"Waypost: create "+ctype, false)
			if err != nil {
				return err
			}
			f.result.PrimaryTopic = id
			log.Info("created primary topic", "topic", id, "type", ctype)
			return nil
		},
		workflow.StepAnnounce: func(ctx context.Context) error {
			msg := announce{
				Type:        ctype,
				Name:        cfg.Draft.Name,
				Description: cfg.Draft.Description,
				Media:       string(f.result.AssetRef),
			}
			var buf bytes.Buffer
			enc := json.NewEncoder(&buf)
			enc.SetEscapeHTML(false)
			if err := enc.Encode(msg); err != nil {
				return err
			}
			_, err := cfg.Client.SubmitMessage(ctx, f.result.PrimaryTopic,
				bytes.TrimRight(buf.Bytes(), "\n"), "Waypost "+ctype)
			return err
		},
	}

	if len(cfg.Draft.Media) > 0 {
		ops[workflow.StepUploadAsset] = func(ctx context.Context) error {
			ref, err := cfg.Binary.Upload(ctx, cfg.Draft.MediaName, cfg.Draft.Media)
			if err != nil {
				return err
			}
			f.result.AssetRef = ref
			return nil
		}
	}

	addItem := func(ctx context.Context) error {
		res, err := cfg.Coordinator.AddItem(ctx, list.Item{
			Name:        cfg.Draft.Name,
			ID:          f.result.PrimaryTopic,
			Description: cfg.Draft.Description,
			Media:       string(f.result.AssetRef),
		})
		if !res.TopicID.Empty() {
			f.result.ListTopic = res.TopicID
		}
		return err
	}

	if cfg.Coordinator.HasTopic() {
		ops[workflow.StepUpdateList] = addItem
	} else {
		ops[workflow.StepCreateList] = func(ctx context.Context) error {
			id, _, err := cfg.Coordinator.EnsureTopic(ctx)
			if !id.Empty() {
				f.result.ListTopic = id
			}
			return err
		}
		ops[workflow.StepAddToList] = addItem
		ops[workflow.StepLinkProfile] = func(ctx context.Context) error {
			ok, err := cfg.LinkProfile(ctx, f.result.ListTopic, cfg.Draft.Kind)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("profile back-reference update declined")
			}
			return nil
		}
	}

	engine, err := workflow.New(workflow.Config{
		Plan:      plan,
		Ops:       ops,
		Signer:    cfg.Signer,
		Runner:    cfg.Runner,
		Scheduler: cfg.Scheduler,
		OnChange:  cfg.OnChange,
		OnNotice:  cfg.OnNotice,
		OnComplete: func() {
			if cfg.OnComplete != nil {
				cfg.OnComplete(f.result)
			}
		},
		Logger: log,
	})
	if err != nil {
		return nil, err
	}
	f.engine = engine
	return f, nil
}

// Engine exposes the underlying workflow engine (plan rendering, start,
// retry, auto-progress, resume, cancel).
func (f *Flow) Engine() *workflow.Engine { return f.engine }

// Kind returns the list kind this flow publishes into.
func (f *Flow) Kind() list.Kind { return f.coord.Kind() }

// Result returns the ids produced so far. Fields fill in as steps land, so
// a halted flow still reports what is durably committed.
func (f *Flow) Result() Result { return f.result }
