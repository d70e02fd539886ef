package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaintenanceRepository_RebuildCommentIDs(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewMaintenanceRepository(db)
	ctx := context.Background()

	// Live comments: 100 and 101 on post 5 by user 10, 102 on post 6 by user 11.
	liveRows := sqlmock.NewRows([]string{"id", "post_id", "user_id"}).
		AddRow(100, 5, 10).
		AddRow(101, 5, 10).
		AddRow(102, 6, 11)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id","post_id","user_id" FROM "comments" WHERE deleted = false`)).
		WillReturnRows(liveRows)

	// Post 5 has drifted (lost 101); post 6 is accurate.
	postRows := sqlmock.NewRows([]string{"id", "comment_ids"}).
		AddRow(5, `[100]`).
		AddRow(6, `[102]`)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id","comment_ids" FROM "posts"`)).
		WillReturnRows(postRows)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "posts" SET "comment_ids"=$1`)).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// User 10 is accurate; user 11 has a stale extra entry.
	userRows := sqlmock.NewRows([]string{"id", "comment_ids"}).
		AddRow(10, `[100,101]`).
		AddRow(11, `[102,999]`)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id","comment_ids" FROM "users"`)).
		WillReturnRows(userRows)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "users" SET "comment_ids"=$1`)).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), 11).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := repo.RebuildCommentIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.PostsUpdated)
	assert.Equal(t, 1, result.UsersUpdated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaintenanceRepository_RebuildCommentIDs_NothingToDo(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewMaintenanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id","post_id","user_id" FROM "comments"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "post_id", "user_id"}))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id","comment_ids" FROM "posts"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "comment_ids"}))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id","comment_ids" FROM "users"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "comment_ids"}))

	result, err := repo.RebuildCommentIDs(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.PostsUpdated)
	assert.Zero(t, result.UsersUpdated)
	assert.NoError(t, mock.ExpectationsWereMet())
}
