package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/quailyquaily/socialsim/agent"
	"github.com/quailyquaily/socialsim/environment"
	"github.com/quailyquaily/socialsim/interact"
	"github.com/quailyquaily/socialsim/internal/logutil"
	"github.com/quailyquaily/socialsim/internal/pathutil"
	"github.com/quailyquaily/socialsim/internal/statepaths"
	"github.com/quailyquaily/socialsim/judge"
	"github.com/quailyquaily/socialsim/llm"
	"github.com/quailyquaily/socialsim/memory"
	"github.com/quailyquaily/socialsim/persona"
	"github.com/quailyquaily/socialsim/post"
	"github.com/quailyquaily/socialsim/post/filestore"
	"github.com/quailyquaily/socialsim/post/sqlitestore"
	"github.com/quailyquaily/socialsim/providers/ollama"
	"github.com/spf13/viper"
)

// deps is everything a subcommand may need, built from viper once per run.
type deps struct {
	log     *slog.Logger
	client  llm.Client
	roster  *persona.Roster
	mem     memory.Store
	posts   post.Store
	closers []func() error
}

type depsOptions struct {
	posts bool
}

func loadDeps(ctx context.Context, opts depsOptions) (*deps, error) {
	logger, err := logutil.LoggerFromViper()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	d := &deps{log: logger}
	d.client = ollama.New(ollama.Config{
		Endpoint:       viper.GetString("llm.endpoint"),
		RequestTimeout: viper.GetDuration("llm.request_timeout"),
	})

	d.roster, err = rosterFromViper()
	if err != nil {
		return nil, err
	}
	d.mem, err = memoryFromViper(d)
	if err != nil {
		return nil, err
	}
	if opts.posts {
		d.posts, err = postStoreFromViper(ctx, d)
		if err != nil {
			d.Close()
			return nil, err
		}
	}
	return d, nil
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			d.log.Warn("close_failed", "error", err.Error())
		}
	}
	d.closers = nil
}

// rosterFromViper loads the roster. A non-empty llm.model overrides every
// persona's model.
func rosterFromViper() (*persona.Roster, error) {
	path := pathutil.ExpandHomePath(strings.TrimSpace(viper.GetString("personas.path")))
	roster, err := persona.LoadRoster(path)
	if err != nil {
		return nil, err
	}
	model := strings.TrimSpace(viper.GetString("llm.model"))
	if model == "" {
		return roster, nil
	}
	all := roster.All()
	for i, p := range all {
		all[i] = persona.New(p.Name, model, p.Profile)
	}
	return persona.NewRoster(all)
}

func memoryFromViper(d *deps) (memory.Store, error) {
	embedder := memory.NewHashEmbedder(viper.GetInt("memory.embedding_dim"))
	switch driver := strings.ToLower(strings.TrimSpace(viper.GetString("memory.driver"))); driver {
	case "", "file":
		fs, err := memory.NewFileStore(statepaths.MemoryDir(), embedder)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, fs.Close)
		return fs, nil
	case "memory":
		return memory.NewInMemoryStore(embedder), nil
	default:
		return nil, fmt.Errorf("unknown memory.driver %q (want file|memory)", driver)
	}
}

func postStoreFromViper(ctx context.Context, d *deps) (post.Store, error) {
	switch driver := strings.ToLower(strings.TrimSpace(viper.GetString("store.driver"))); driver {
	case "", "file":
		s, err := filestore.New(statepaths.PostsPath())
		if err != nil {
			return nil, err
		}
		return s, nil
	case "sqlite":
		s, err := sqlitestore.Open(ctx, statepaths.SQLiteDSN())
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, s.Close)
		return s, nil
	case "memory":
		return post.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store.driver %q (want file|sqlite|memory)", driver)
	}
}

func (d *deps) newAgent(p persona.Persona) *agent.Agent {
	return agent.New(p, d.client, d.mem,
		agent.WithLogger(d.log),
		agent.WithMemoryTopK(viper.GetInt("memory.top_k")),
		agent.WithHistoryLimit(viper.GetInt("agent.history_max_turns")),
	)
}

func (d *deps) orchestrator() *interact.Orchestrator {
	return interact.New(d.posts, d.roster, d.newAgent, interact.WithLogger(d.log))
}

func (d *deps) persona(name string) (persona.Persona, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		if d.roster.Len() == 0 {
			return persona.Persona{}, interact.ErrEmptyRoster
		}
		return d.roster.At(0), nil
	}
	return d.roster.Find(name)
}

func (d *deps) judge(seed uint64) (judge.Judge, error) {
	switch kind := strings.ToLower(strings.TrimSpace(viper.GetString("judge.kind"))); kind {
	case "", "panel":
		return judge.NewPanel(d.client, d.roster.All(), judge.PanelConfig{
			Size:   viper.GetInt("judge.panel_size"),
			Rand:   rand.New(rand.NewPCG(seed, seed^0x5eed)),
			Logger: d.log,
		}), nil
	case "critic":
		return judge.NewCritic(d.client, judge.CriticConfig{
			Model:  viper.GetString("llm.critic_model"),
			Logger: d.log,
		}), nil
	default:
		return nil, fmt.Errorf("unknown judge.kind %q (want panel|critic)", kind)
	}
}

func (d *deps) environment(author persona.Persona, seed uint64) (*environment.Environment, error) {
	j, err := d.judge(seed)
	if err != nil {
		return nil, err
	}
	return environment.New(d.newAgent(author), j, environment.Config{
		MaxSteps: viper.GetInt("env.max_steps"),
		Logger:   d.log,
	}), nil
}

func seedFromViper() uint64 {
	if seed := viper.GetUint64("train.seed"); seed != 0 {
		return seed
	}
	return uint64(time.Now().UnixNano())
}
