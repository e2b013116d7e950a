package digest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/urbansetu/notifier/pkg/mailer"
	"github.com/urbansetu/notifier/pkg/source"
)

type fakeCursor struct {
	users  []source.User
	pos    int
	err    error
	closed bool
}

func (c *fakeCursor) Next() bool {
	if c.pos >= len(c.users) {
		return false
	}
	c.pos++
	return true
}

func (c *fakeCursor) User() (source.User, error) {
	return c.users[c.pos-1], nil
}

func (c *fakeCursor) Err() error { return c.err }

func (c *fakeCursor) Close() { c.closed = true }

type fakeUsers struct {
	cursor *fakeCursor
	err    error
}

func (f *fakeUsers) ActiveUsers(ctx context.Context) (source.UserCursor, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.cursor, nil
}

type fakeCatalog struct {
	newest  []source.Listing
	popular []source.Listing
	saved   map[string][]source.Listing
}

func (f *fakeCatalog) NewestListings(ctx context.Context, limit int) ([]source.Listing, error) {
	return f.newest, nil
}

func (f *fakeCatalog) MostViewedListings(ctx context.Context, limit int) ([]source.Listing, error) {
	return f.popular, nil
}

func (f *fakeCatalog) SavedListings(ctx context.Context, userID string, limit int) ([]source.Listing, error) {
	return f.saved[userID], nil
}

// fakeDeliverer fails the first failures[recipient] attempts for each
// recipient, then succeeds.
type fakeDeliverer struct {
	failures  map[string]int
	attempts  map[string]int
	delivered []*mailer.Email
}

func newFakeDeliverer(failures map[string]int) *fakeDeliverer {
	return &fakeDeliverer{failures: failures, attempts: make(map[string]int)}
}

func (f *fakeDeliverer) Deliver(ctx context.Context, email *mailer.Email) mailer.Result {
	f.attempts[email.To]++
	if f.attempts[email.To] <= f.failures[email.To] {
		return mailer.Result{Success: false, Err: errors.New("provider exhausted"), Attempts: 3}
	}
	f.delivered = append(f.delivered, email)
	return mailer.Result{Success: true, Provider: "smtp", Attempts: 1}
}

func users(emails ...string) []source.User {
	us := make([]source.User, len(emails))
	for i, e := range emails {
		us[i] = source.User{ID: e, Username: "user-" + e, Email: e}
	}
	return us
}

func listings(ids ...string) []source.Listing {
	ls := make([]source.Listing, len(ids))
	for i, id := range ids {
		ls[i] = source.Listing{ID: id, Name: "Listing " + id, City: "Austin"}
	}
	return ls
}

// sleepRecorder captures every throttle and backoff wait.
type sleepRecorder struct {
	waits []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return ctx.Err()
}

func newTestPipeline(u *fakeUsers, c *fakeCatalog, d *fakeDeliverer, rec *sleepRecorder) *Pipeline {
	return New(u, c, d, Config{}, WithSleep(rec.sleep))
}

func TestRunOnce_SendsToEveryUser(t *testing.T) {
	t.Parallel()

	cursor := &fakeCursor{users: users("a@x.com", "b@x.com", "c@x.com")}
	catalog := &fakeCatalog{newest: listings("n1", "n2")}
	del := newFakeDeliverer(nil)
	rec := &sleepRecorder{}

	summary, err := newTestPipeline(&fakeUsers{cursor: cursor}, catalog, del, rec).RunOnce(context.Background())

	require.NoError(t, err)
	require.Equal(t, 3, summary.Processed)
	require.Equal(t, 3, summary.Sent)
	require.Zero(t, summary.Failed)
	require.Len(t, del.delivered, 3)
	require.True(t, cursor.closed)
}

func TestRunOnce_ThrottlesBetweenUsers(t *testing.T) {
	t.Parallel()

	cursor := &fakeCursor{users: users("a@x.com", "b@x.com", "c@x.com")}
	catalog := &fakeCatalog{newest: listings("n1")}
	del := newFakeDeliverer(nil)
	rec := &sleepRecorder{}

	_, err := newTestPipeline(&fakeUsers{cursor: cursor}, catalog, del, rec).RunOnce(context.Background())

	require.NoError(t, err)
	// One fixed throttle wait per processed user, success or failure.
	require.Equal(t, []time.Duration{time.Second, time.Second, time.Second}, rec.waits)
}

func TestRunOnce_RetriesThenSkips(t *testing.T) {
	t.Parallel()

	cursor := &fakeCursor{users: users("bad@x.com", "good@x.com")}
	catalog := &fakeCatalog{newest: listings("n1")}
	// bad@x.com fails more times than the wrapper budget allows.
	del := newFakeDeliverer(map[string]int{"bad@x.com": 5})
	rec := &sleepRecorder{}

	summary, err := newTestPipeline(&fakeUsers{cursor: cursor}, catalog, del, rec).RunOnce(context.Background())

	require.NoError(t, err)
	require.Equal(t, 2, summary.Processed)
	require.Equal(t, 1, summary.Sent)
	require.Equal(t, 1, summary.Failed)
	// Wrapper stopped at its budget and the cursor advanced.
	require.Equal(t, 2, del.attempts["bad@x.com"])
	require.Equal(t, 1, del.attempts["good@x.com"])
}

func TestRunOnce_WrapperBackoffScalesWithAttempt(t *testing.T) {
	t.Parallel()

	cursor := &fakeCursor{users: users("bad@x.com")}
	catalog := &fakeCatalog{newest: listings("n1")}
	del := newFakeDeliverer(map[string]int{"bad@x.com": 5})
	rec := &sleepRecorder{}

	p := New(&fakeUsers{cursor: cursor}, catalog, del, Config{MaxRetries: 3}, WithSleep(rec.sleep))
	_, err := p.RunOnce(context.Background())

	require.NoError(t, err)
	// attempt*delay backoff between wrapper attempts, then the throttle.
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second, time.Second}, rec.waits)
}

func TestRunOnce_AbortsWhenNoContent(t *testing.T) {
	t.Parallel()

	cursor := &fakeCursor{users: users("a@x.com")}
	del := newFakeDeliverer(nil)
	rec := &sleepRecorder{}

	summary, err := newTestPipeline(&fakeUsers{cursor: cursor}, &fakeCatalog{}, del, rec).RunOnce(context.Background())

	require.ErrorIs(t, err, ErrNoContent)
	require.Zero(t, summary.Processed)
	require.Empty(t, del.delivered)
}

func TestRunOnce_UserStreamFailureAbortsRun(t *testing.T) {
	t.Parallel()

	catalog := &fakeCatalog{newest: listings("n1")}
	del := newFakeDeliverer(nil)
	rec := &sleepRecorder{}

	_, err := newTestPipeline(&fakeUsers{err: errors.New("database unreachable")}, catalog, del, rec).RunOnce(context.Background())

	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNoContent)
}

func TestRunOnce_PersonalizedContentPreferred(t *testing.T) {
	t.Parallel()

	cursor := &fakeCursor{users: users("a@x.com", "b@x.com")}
	catalog := &fakeCatalog{
		newest: listings("global"),
		saved:  map[string][]source.Listing{"a@x.com": listings("saved-1")},
	}
	del := newFakeDeliverer(nil)
	rec := &sleepRecorder{}

	var composed [][]source.Listing
	p := New(&fakeUsers{cursor: cursor}, catalog, del, Config{},
		WithSleep(rec.sleep),
		WithComposer(func(user source.User, featured []source.Listing) (string, string) {
			composed = append(composed, featured)
			return "subject", "<p>body</p>"
		}),
	)
	_, err := p.RunOnce(context.Background())

	require.NoError(t, err)
	require.Len(t, composed, 2)
	// User a has saved listings; user b degrades to the global fallback.
	require.Equal(t, "saved-1", composed[0][0].ID)
	require.Equal(t, "global", composed[1][0].ID)
}

func TestRunOnce_SkipsUserWithoutEmail(t *testing.T) {
	t.Parallel()

	cursor := &fakeCursor{users: []source.User{{ID: "u1", Username: "ghost"}}}
	catalog := &fakeCatalog{newest: listings("n1")}
	del := newFakeDeliverer(nil)
	rec := &sleepRecorder{}

	summary, err := newTestPipeline(&fakeUsers{cursor: cursor}, catalog, del, rec).RunOnce(context.Background())

	require.NoError(t, err)
	require.Equal(t, 1, summary.Processed)
	require.Equal(t, 1, summary.Failed)
	require.Empty(t, del.delivered)
}

func TestRunOnce_Cancellation(t *testing.T) {
	t.Parallel()

	cursor := &fakeCursor{users: users("a@x.com", "b@x.com", "c@x.com")}
	catalog := &fakeCatalog{newest: listings("n1")}
	del := newFakeDeliverer(nil)

	ctx, cancel := context.WithCancel(context.Background())
	var throttles int
	p := New(&fakeUsers{cursor: cursor}, catalog, del, Config{},
		WithSleep(func(ctx context.Context, d time.Duration) error {
			// Cancel during the first throttle; the run must stop
			// before drawing the next user.
			throttles++
			cancel()
			return ctx.Err()
		}),
	)

	summary, err := p.RunOnce(ctx)

	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, summary.Processed)
	require.Equal(t, 1, throttles)
}

func TestRunOnce_DeduplicatesFallback(t *testing.T) {
	t.Parallel()

	cursor := &fakeCursor{users: users("a@x.com")}
	catalog := &fakeCatalog{
		newest:  listings("l1", "l2"),
		popular: listings("l2", "l3"),
	}
	del := newFakeDeliverer(nil)
	rec := &sleepRecorder{}

	var got []source.Listing
	p := New(&fakeUsers{cursor: cursor}, catalog, del, Config{},
		WithSleep(rec.sleep),
		WithComposer(func(user source.User, featured []source.Listing) (string, string) {
			got = featured
			return "subject", "<p>body</p>"
		}),
	)
	_, err := p.RunOnce(context.Background())

	require.NoError(t, err)
	require.Len(t, got, 3)
}
