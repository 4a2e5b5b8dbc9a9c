package learner

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/quailyquaily/socialsim/environment"
	"github.com/quailyquaily/socialsim/judge"
	"github.com/quailyquaily/socialsim/strategy"
)

// echoAuthor writes the strategy name as the post.
type echoAuthor struct{}

func (echoAuthor) GenerateFromStrategy(_ context.Context, name string) (string, error) {
	return name, nil
}

func favouriteEnv(favourite string, maxSteps int) *environment.Environment {
	j := &judge.Stub{Func: func(_ context.Context, content string) (judge.Score, error) {
		if content == favourite {
			return judge.Score{Reward: 10, MaxReward: 10}, nil
		}
		return judge.Score{Reward: 0, MaxReward: 10}, nil
	}}
	return environment.New(echoAuthor{}, j, environment.Config{MaxSteps: maxSteps})
}

func TestPredictorWithoutArtifactReturnsZero(t *testing.T) {
	t.Parallel()

	p := Predictor{Dir: t.TempDir()}
	for _, obs := range []environment.Observation{{}, {Likes: 500, Comments: 3, Sentiment: 0.9, InteractionRate: 1}} {
		got, err := p.Predict(obs)
		if err != nil || got != 0 {
			t.Fatalf("Predict(%+v) = %d, %v; want 0, nil", obs, got, err)
		}
	}
	if p.Trained() {
		t.Fatalf("Trained() = true on empty dir")
	}
	if got := NewPolicy().Predict(environment.Observation{Sentiment: 1}); got != 0 {
		t.Fatalf("untrained policy Predict() = %d", got)
	}
}

func TestPredictorRejectsCorruptArtifact(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(ArtifactPath(dir), []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := (Predictor{Dir: dir}).Predict(environment.Observation{}); err == nil {
		t.Fatalf("expected error for corrupt artifact")
	}
}

func TestTrainFindsRewardingStrategy(t *testing.T) {
	t.Parallel()

	env := favouriteEnv("Professional-Lifestyle", 10)
	var progress []Progress
	res, err := Train(context.Background(), env, Config{Steps: 400, Seed: 1, ExplorationFraction: 0.25}, func(p Progress) {
		progress = append(progress, p)
	})
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if res.Steps != 400 || res.Episodes != 40 || len(progress) != 400 {
		t.Fatalf("Train() steps=%d episodes=%d progress=%d", res.Steps, res.Episodes, len(progress))
	}
	if got := res.Policy.Predict(environment.Observation{}); got != 3 {
		t.Fatalf("Predict() = %d (%s), want 3", got, strategy.Names()[got])
	}
	if progress[0].Epsilon != 1.0 || progress[399].Epsilon != DefaultEpsilonEnd {
		t.Fatalf("epsilon schedule = %v .. %v", progress[0].Epsilon, progress[399].Epsilon)
	}
	if !strings.HasPrefix(progress[9].Message(), "Step 10: Score=") {
		t.Fatalf("Message() = %q", progress[9].Message())
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	res, err := Train(context.Background(), favouriteEnv("Humorous-Meme", 5), Config{Steps: 200, Seed: 3, ExplorationFraction: 0.5}, nil)
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if err := res.Policy.Save(dir); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	obs := environment.Observation{}
	if loaded.Predict(obs) != res.Policy.Predict(obs) {
		t.Fatalf("loaded policy disagrees with trained policy")
	}
	got, err := (Predictor{Dir: dir}).Predict(obs)
	if err != nil || got != 5 {
		t.Fatalf("Predictor.Predict() = %d, %v; want 5", got, err)
	}
}

func TestLoadRejectsReorderedTable(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := NewPolicy()
	p.Strategies[0], p.Strategies[1] = p.Strategies[1], p.Strategies[0]
	if err := p.Save(dir); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := Load(dir); !errors.Is(err, ErrIncompatibleArtifact) {
		t.Fatalf("Load() error = %v, want ErrIncompatibleArtifact", err)
	}
}

func TestTrainStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	steps := 0
	res, err := Train(ctx, favouriteEnv("x", 10), Config{Steps: 100, Seed: 2}, func(p Progress) {
		steps = p.Step
		if p.Step == 3 {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Train() error = %v", err)
	}
	if res.Steps != 3 || steps != 3 {
		t.Fatalf("Train() ran %d steps after cancel", res.Steps)
	}
}

func drain(t *testing.T, task *Task) []Status {
	t.Helper()
	select {
	case <-task.Done():
	case <-time.After(10 * time.Second):
		t.Fatalf("task did not finish")
	}
	var out []Status
	for s := range task.Messages() {
		out = append(out, s)
	}
	return out
}

func TestTaskDeliversTerminalMessageAndSaves(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	task := Start(context.Background(), TaskConfig{
		Env:    favouriteEnv("Friendly-Tech", 10),
		Train:  Config{Steps: 25, Seed: 4},
		Dir:    dir,
		Buffer: 4,
	})
	res, err := task.Await(context.Background())
	if err != nil {
		t.Fatalf("Await() error = %v", err)
	}
	if res.Steps != 25 {
		t.Fatalf("Await() steps = %d", res.Steps)
	}
	msgs := drain(t, task)
	if len(msgs) == 0 || len(msgs) > 4 {
		t.Fatalf("got %d buffered messages, want 1..4", len(msgs))
	}
	last := msgs[len(msgs)-1]
	if last.Kind != StatusFinished || !last.Terminal() {
		t.Fatalf("last message = %+v", last)
	}
	for _, m := range msgs[:len(msgs)-1] {
		if m.Kind != StatusProgress {
			t.Fatalf("non-final message kind = %s", m.Kind)
		}
	}
	if task.Dropped() == 0 {
		t.Fatalf("expected dropped progress messages with a small buffer")
	}
	if !(Predictor{Dir: dir}).Trained() {
		t.Fatalf("artifact was not saved")
	}
}

type blockingEnv struct{}

func (blockingEnv) Reset() environment.Observation { return environment.Observation{} }
func (blockingEnv) ActionCount() int               { return strategy.Count() }
func (blockingEnv) Step(ctx context.Context, _ int) (environment.StepResult, error) {
	<-ctx.Done()
	return environment.StepResult{}, ctx.Err()
}

func TestTaskCancel(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	task := Start(context.Background(), TaskConfig{Env: blockingEnv{}, Train: Config{Steps: 10}, Dir: dir})
	task.Cancel()
	if _, err := task.Await(context.Background()); !errors.Is(err, context.Canceled) {
		t.Fatalf("Await() error = %v", err)
	}
	msgs := drain(t, task)
	if last := msgs[len(msgs)-1]; last.Kind != StatusCancelled {
		t.Fatalf("last message = %+v", last)
	}
	if (Predictor{Dir: dir}).Trained() {
		t.Fatalf("cancelled run must not save an artifact")
	}
}

type panickyEnv struct{ blockingEnv }

func (panickyEnv) Step(context.Context, int) (environment.StepResult, error) {
	panic("env exploded")
}

func TestTaskPanicBecomesFailedStatus(t *testing.T) {
	t.Parallel()

	task := Start(context.Background(), TaskConfig{Env: panickyEnv{}, Train: Config{Steps: 5}})
	_, err := task.Await(context.Background())
	if err == nil || !strings.Contains(err.Error(), "env exploded") {
		t.Fatalf("Await() error = %v", err)
	}
	msgs := drain(t, task)
	if last := msgs[len(msgs)-1]; last.Kind != StatusFailed || last.Err == nil {
		t.Fatalf("last message = %+v", last)
	}
}
