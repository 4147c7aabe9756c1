package verifications

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var cols = []string{"id", "email", "token", "code", "expires_at", "verified_at", "used", "created_at"}

func TestLockEmail(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^SELECT\s+pg_advisory_xact_lock\(hashtext\(\$1\)\)$`).
		WithArgs("a@x.com").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.LockEmail(context.Background(), "a@x.com"); err != nil {
		t.Fatalf("LockEmail error: %v", err)
	}
}

func TestCreate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	exp := now.Add(10 * time.Minute)
	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+email_verifications\s*\(email,\s*token,\s*code,\s*expires_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4\)\s*RETURNING\s+id,\s*created_at$`).
		WithArgs("a@x.com", "tok", "012345", exp).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("v-1", now))

	rec, err := repo.Create(context.Background(), &models.VerificationRecord{
		Email: "a@x.com", Token: "tok", Code: models.Ptr("012345"), ExpiresAt: exp,
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if rec.ID != "v-1" {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestCreate_LinkHasNullCode(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	exp := time.Now().Add(24 * time.Hour)
	mock.ExpectQuery(`INSERT\s+INTO\s+email_verifications`).
		WithArgs("a@x.com", "tok", nil, exp).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("v-2", time.Now()))

	if _, err := repo.Create(context.Background(), &models.VerificationRecord{Email: "a@x.com", Token: "tok", ExpiresAt: exp}); err != nil {
		t.Fatalf("Create error: %v", err)
	}
}

func TestFindByToken(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`WHERE\s+token\s*=\s*\$1$`).
		WithArgs("tok").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("v-1", "a@x.com", "tok", nil, now, nil, false, now))

	rec, err := repo.FindByToken(context.Background(), "tok")
	if err != nil {
		t.Fatalf("FindByToken error: %v", err)
	}
	if rec.Code != nil || rec.Verified() || rec.Used {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestFindByToken_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`WHERE\s+token`).WillReturnError(sql.ErrNoRows)

	if _, err := repo.FindByToken(context.Background(), "nope"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}

func TestFindByEmailAndCodeUnused(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)WHERE\s+email\s*=\s*\$1\s+AND\s+code\s*=\s*\$2\s+AND\s+used\s*=\s*FALSE.*LIMIT\s+1$`).
		WithArgs("a@x.com", "123456").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("v-1", "a@x.com", "tok", "123456", now, now, false, now))

	rec, err := repo.FindByEmailAndCodeUnused(context.Background(), "a@x.com", "123456")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if models.Deref(rec.Code) != "123456" || !rec.Verified() {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestLockByEmailAndCodeUnused_UsesForUpdate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)LIMIT\s+1\s+FOR\s+UPDATE$`).
		WithArgs("a@x.com", "123456").
		WillReturnError(sql.ErrNoRows)

	if _, err := repo.LockByEmailAndCodeUnused(context.Background(), "a@x.com", "123456"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}

func TestMarkVerified(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	at := time.Now()
	mock.ExpectExec(`(?s)SET\s+verified_at\s*=\s*COALESCE\(verified_at,\s*\$2\)\s+WHERE\s+id\s*=\s*\$1\s+AND\s+used\s*=\s*FALSE$`).
		WithArgs("v-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.MarkVerified(context.Background(), "v-1", at); err != nil {
		t.Fatalf("MarkVerified error: %v", err)
	}
}

func TestMarkUsed(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `SET\s+used\s*=\s*TRUE\s+WHERE\s+id\s*=\s*\$1\s+AND\s+used\s*=\s*FALSE$`
	mock.ExpectExec(q).WithArgs("v-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("v-1").WillReturnResult(sqlmock.NewResult(0, 0))

	flipped, err := repo.MarkUsed(context.Background(), "v-1")
	if err != nil || !flipped {
		t.Fatalf("first MarkUsed = %v, %v", flipped, err)
	}
	flipped, err = repo.MarkUsed(context.Background(), "v-1")
	if err != nil || flipped {
		t.Fatalf("second MarkUsed = %v, %v", flipped, err)
	}
}

func TestMarkUsedInSavepoint_FailureKeepsTransactionUsable(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	defer db.Close()

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)WHERE\s+email\s*=\s*\$1\s+AND\s+code\s*=\s*\$2.*FOR\s+UPDATE$`).
		WithArgs("a@x.com", "012345").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("v-1", "a@x.com", "tok", "012345", now.Add(time.Minute), now, false, now))
	mock.ExpectExec(`^SAVEPOINT\s+mark_verification_used$`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`SET\s+used\s*=\s*TRUE`).WithArgs("v-1").WillReturnError(errors.New("lock timeout"))
	mock.ExpectExec(`^ROLLBACK\s+TO\s+SAVEPOINT\s+mark_verification_used$`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`^SELECT\s+pg_advisory_xact_lock`).WithArgs("a@x.com").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err = dbx.WithTx(context.Background(), db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := NewPostgresRepository(tx)
		rec, err := repo.LockByEmailAndCodeUnused(ctx, "a@x.com", "012345")
		if err != nil {
			return err
		}
		if _, err := repo.MarkUsedInSavepoint(ctx, rec.ID); err == nil {
			t.Fatalf("MarkUsedInSavepoint: expected error")
		}
		return repo.LockEmail(ctx, "a@x.com")
	})
	if err != nil {
		t.Fatalf("transaction error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMarkUsedInSavepoint_Releases(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^SAVEPOINT\s+mark_verification_used$`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`SET\s+used\s*=\s*TRUE`).WithArgs("v-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`^RELEASE\s+SAVEPOINT\s+mark_verification_used$`).WillReturnResult(sqlmock.NewResult(0, 0))

	flipped, err := repo.MarkUsedInSavepoint(context.Background(), "v-1")
	if err != nil || !flipped {
		t.Fatalf("MarkUsedInSavepoint = %v, %v", flipped, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeletes(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectExec(`^DELETE\s+FROM\s+email_verifications\s+WHERE\s+email\s*=\s*\$1\s+AND\s+used\s*=\s*FALSE$`).
		WithArgs("a@x.com").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`^DELETE\s+FROM\s+email_verifications\s+WHERE\s+expires_at\s*<\s*\$1$`).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec(`DELETE`).WillReturnError(errors.New("down"))

	ctx := context.Background()
	if n, err := repo.DeleteUnusedByEmail(ctx, "a@x.com"); err != nil || n != 2 {
		t.Fatalf("DeleteUnusedByEmail = %d, %v", n, err)
	}
	if n, err := repo.DeleteExpiredBefore(ctx, now); err != nil || n != 5 {
		t.Fatalf("DeleteExpiredBefore = %d, %v", n, err)
	}
	_, err := repo.DeleteExpiredBefore(ctx, now)
	if err == nil || !regexp.MustCompile(`db error: .*down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}
