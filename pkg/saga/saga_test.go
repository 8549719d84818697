package saga_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alekseev-bro/evstore/internal/testdomain"
	"github.com/alekseev-bro/evstore/pkg/bus/membus"
	"github.com/alekseev-bro/evstore/pkg/driver"
	"github.com/alekseev-bro/evstore/pkg/event"
	"github.com/alekseev-bro/evstore/pkg/saga"
	"github.com/alekseev-bro/evstore/pkg/state"
	"github.com/alekseev-bro/evstore/pkg/store/memstore"
)

type (
	user         = testdomain.User
	userEvent    = testdomain.UserEvent
	account      = testdomain.Account
	accountEvent = testdomain.AccountEvent
)

func openAccount(env event.Envelope[userEvent]) (event.ID, state.Command[account, accountEvent]) {
	added := env.Payload().Added
	if added == nil {
		return event.NilID, nil
	}
	return env.Info().ID, testdomain.OpenAccount{Owner: added.Email}
}

func drivers() (*driver.Driver[user, userEvent], *driver.Driver[account, accountEvent]) {
	users := driver.New[user, userEvent](memstore.New[user, userEvent](), membus.New[userEvent]())
	accounts := driver.New[account, accountEvent](memstore.New[account, accountEvent](), membus.New[accountEvent]())
	return users, accounts
}

func TestStepOpensAccountForNewUser(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	users, accounts := drivers()

	running, err := saga.Step[userEvent, account, accountEvent](ctx, users, accounts, openAccount)
	require.NoError(t, err)
	defer running.Drain()

	u, err := users.Execute(ctx, event.RandomID(), testdomain.AddUser{Email: "a@b.c", Name: "a"}, event.GuestActor())
	require.NoError(t, err)
	_, err = users.Execute(ctx, u.ID(), testdomain.RenameUser{NewName: "b"}, event.GuestActor())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		acc, err := accounts.Load(ctx, u.ID())
		return err == nil && acc.IsSome()
	}, time.Second, 5*time.Millisecond)

	acc, err := accounts.Load(ctx, u.ID())
	require.NoError(t, err)
	data, _ := acc.Data()
	require.Equal(t, account{Owner: "a@b.c", Welcome: true}, data)
	require.Equal(t, uint64(1), acc.Version())
	info, _ := acc.Info()
	require.Equal(t, event.RootActor(), info.User)
}

func TestStepStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	users, accounts := drivers()
	running, err := saga.Step[userEvent, account, accountEvent](ctx, users, accounts, openAccount)
	require.NoError(t, err)

	cancel()
	select {
	case <-running.Done():
	case <-time.After(time.Second):
		t.Fatal("saga did not stop")
	}
	require.NoError(t, running.Drain())
}

type rejectAll struct{}

func (rejectAll) HandleBy(*account) ([]accountEvent, error) {
	return nil, testdomain.ErrUserExists
}

func TestStepReportsErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	users, accounts := drivers()

	var mu sync.Mutex
	var errs []error
	running, err := saga.Step[userEvent, account, accountEvent](ctx, users, accounts,
		func(env event.Envelope[userEvent]) (event.ID, state.Command[account, accountEvent]) {
			return env.Info().ID, rejectAll{}
		},
		saga.WithErrorHandler(func(err error) {
			mu.Lock()
			defer mu.Unlock()
			errs = append(errs, err)
		}),
	)
	require.NoError(t, err)
	defer running.Drain()

	_, err = users.Execute(ctx, event.RandomID(), testdomain.AddUser{Email: "a@b.c", Name: "a"}, event.GuestActor())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(errs) == 1
	}, time.Second, 5*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	require.ErrorIs(t, errs[0], testdomain.ErrUserExists)
}
