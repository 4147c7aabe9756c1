package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestCode_IssuesAndMails(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	code, err := e.verify.RequestCode(ctx, "  Bob@Example.com ")
	require.NoError(t, err)
	require.Len(t, code, 6)
	for _, r := range code {
		require.True(t, r >= '0' && r <= '9', "code %q must be numeric", code)
	}

	msg := e.mailer.last(t)
	assert.Equal(t, "bob@example.com", msg.To)
	assert.Contains(t, msg.Body, code)

	recs := e.db.verifsFor("bob@example.com")
	require.Len(t, recs, 1)
	assert.Equal(t, code, models.Deref(recs[0].Code))
	assert.NotEmpty(t, recs[0].Token)
	assert.Equal(t, e.clock.Now().Add(10*time.Minute), recs[0].ExpiresAt)
	assert.False(t, recs[0].Used)
	assert.Nil(t, recs[0].VerifiedAt)
}

func TestRequestCode_InvalidEmail(t *testing.T) {
	e := newEnv(t)

	_, err := e.verify.RequestCode(context.Background(), "not-an-email")
	assert.ErrorIs(t, err, common.ErrValidation)
	assert.Empty(t, e.mailer.sent)
}

func TestRequestCode_SupersedesPrevious(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	first, err := e.verify.RequestCode(ctx, "a@x.com")
	require.NoError(t, err)
	second, err := e.verify.RequestCode(ctx, "a@x.com")
	require.NoError(t, err)
	if first == second {
		t.Skip("both random codes collided")
	}

	assert.ErrorIs(t, e.verify.ConfirmCode(ctx, "a@x.com", first), common.ErrVerificationInvalid)
	assert.NoError(t, e.verify.ConfirmCode(ctx, "a@x.com", second))
	assert.Len(t, e.db.verifsFor("a@x.com"), 1)
}

func TestRequestCode_MailUnavailable(t *testing.T) {
	e := newEnv(t)
	e.mailer.err = common.ErrMailUnavailable

	_, err := e.verify.RequestCode(context.Background(), "a@x.com")
	assert.ErrorIs(t, err, common.ErrMailUnavailable)
}

func TestRequestCode_StorageFaultIsInternal(t *testing.T) {
	e := newEnv(t)
	e.db.fail["verifs.Create"] = errors.New("connection reset")

	_, err := e.verify.RequestCode(context.Background(), "a@x.com")
	assert.ErrorIs(t, err, common.ErrorInternal)
	assert.NotContains(t, err.Error(), "connection reset")
	assert.Empty(t, e.mailer.sent)
}

func TestConfirmCode_Expiry(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	code, err := e.verify.RequestCode(ctx, "a@x.com")
	require.NoError(t, err)

	e.clock.Advance(9 * time.Minute)
	require.NoError(t, e.verify.ConfirmCode(ctx, "a@x.com", code))
	ok, err := e.verify.IsConfirmed(ctx, "a@x.com", code)
	require.NoError(t, err)
	assert.True(t, ok)

	e.clock.Advance(2 * time.Minute)
	assert.ErrorIs(t, e.verify.ConfirmCode(ctx, "a@x.com", code), common.ErrVerificationExpired)
	ok, err = e.verify.IsConfirmed(ctx, "a@x.com", code)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConfirmCode_ExpiredBeforeConfirm(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	code, err := e.verify.RequestCode(ctx, "a@x.com")
	require.NoError(t, err)

	e.clock.Advance(11 * time.Minute)
	assert.ErrorIs(t, e.verify.ConfirmCode(ctx, "a@x.com", code), common.ErrVerificationExpired)
}

func TestConfirmCode_IsRepeatableAndDoesNotConsume(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	code := e.confirmedCode(t, "a@x.com")
	stamp := *e.db.verifsFor("a@x.com")[0].VerifiedAt

	e.clock.Advance(time.Minute)
	require.NoError(t, e.verify.ConfirmCode(ctx, "a@x.com", code))

	rec := e.db.verifsFor("a@x.com")[0]
	assert.False(t, rec.Used)
	assert.Equal(t, stamp, *rec.VerifiedAt, "first confirmation time is kept")
}

func TestConfirmCode_WrongCode(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	code, err := e.verify.RequestCode(ctx, "a@x.com")
	require.NoError(t, err)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	assert.ErrorIs(t, e.verify.ConfirmCode(ctx, "a@x.com", wrong), common.ErrVerificationInvalid)
	assert.ErrorIs(t, e.verify.ConfirmCode(ctx, "b@x.com", code), common.ErrVerificationInvalid)
}

func TestIsConfirmed_RequiresConfirmation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	code, err := e.verify.RequestCode(ctx, "a@x.com")
	require.NoError(t, err)

	ok, err := e.verify.IsConfirmed(ctx, "a@x.com", code)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = e.verify.IsConfirmed(ctx, "nobody@x.com", code)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsConfirmed_StorageFault(t *testing.T) {
	e := newEnv(t)
	e.db.fail["verifs.FindByEmailAndCodeUnused"] = errors.New("boom")

	_, err := e.verify.IsConfirmed(context.Background(), "a@x.com", "123456")
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func TestConsume(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	code := e.confirmedCode(t, "a@x.com")

	require.NoError(t, e.verify.Consume(ctx, "a@x.com", code))
	assert.True(t, e.db.verifsFor("a@x.com")[0].Used)

	require.NoError(t, e.verify.Consume(ctx, "a@x.com", code), "second consume is a no-op")
	require.NoError(t, e.verify.Consume(ctx, "ghost@x.com", "123456"), "absent record is a no-op")

	ok, err := e.verify.IsConfirmed(ctx, "a@x.com", code)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRequestLink(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.db.put(models.User{Email: models.Ptr("a@x.com"), Username: models.Ptr("alice"), Provider: models.ProviderLocal})

	token, err := e.verify.RequestLink(ctx, u)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	msg := e.mailer.last(t)
	assert.Equal(t, "a@x.com", msg.To)
	assert.Contains(t, msg.Body, "https://auth.example/api/auth/verify-email?token="+token)

	recs := e.db.verifsFor("a@x.com")
	require.Len(t, recs, 1)
	assert.Nil(t, recs[0].Code)
	assert.Equal(t, e.clock.Now().Add(24*time.Hour), recs[0].ExpiresAt)

	_, err = e.verify.RequestLink(ctx, &models.User{Username: models.Ptr("noemail")})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestSweep_RemovesExpiredRegardlessOfUse(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	used := e.confirmedCode(t, "used@x.com")
	require.NoError(t, e.verify.Consume(ctx, "used@x.com", used))
	_, err := e.verify.RequestCode(ctx, "fresh@x.com")
	require.NoError(t, err)

	e.clock.Advance(11 * time.Minute)
	_, err = e.verify.RequestCode(ctx, "late@x.com")
	require.NoError(t, err)

	n, err := e.verify.Sweep(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Empty(t, e.db.verifsFor("used@x.com"))
	assert.Empty(t, e.db.verifsFor("fresh@x.com"))
	assert.Len(t, e.db.verifsFor("late@x.com"), 1)
}

func TestRunSweeper_StopsOnCancel(t *testing.T) {
	e := newEnv(t)
	_, err := e.verify.RequestCode(context.Background(), "a@x.com")
	require.NoError(t, err)
	e.clock.Advance(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.verify.RunSweeper(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(e.db.verifsFor("a@x.com")) == 0 },
		time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("sweeper did not stop")
	}
}

func TestRunSweeper_DisabledInterval(t *testing.T) {
	e := newEnv(t)
	done := make(chan struct{})
	go func() {
		e.verify.RunSweeper(context.Background(), 0)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("sweeper with zero interval must return")
	}
}

func TestLinkURL_EscapesToken(t *testing.T) {
	e := newEnv(t)
	u := e.verify.LinkURL("a b")
	assert.True(t, strings.HasSuffix(u, "token=a+b"), u)
}
