package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"driftboard/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// expectCommentIDFanout mocks the read-modify-write pair against one of the
// denormalized comment_ids lists (posts or users).
func expectCommentIDFanout(mock sqlmock.Sqlmock, table string, ownerID uint, current string) {
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id","comment_ids" FROM "` + table + `"`)).
		WithArgs(ownerID, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "comment_ids"}).AddRow(ownerID, current))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "` + table + `" SET "comment_ids"=$1`)).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), ownerID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
}

func TestCommentRepository_Create_FansOutToPostAndAuthor(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()

	comment := &models.Comment{Content: "hi", PostID: 5, UserID: 10}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "comments"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(100))
	mock.ExpectCommit()

	expectCommentIDFanout(mock, "posts", 5, `[]`)
	expectCommentIDFanout(mock, "users", 10, `[]`)

	err := repo.Create(ctx, comment)
	require.NoError(t, err)
	assert.Equal(t, uint(100), comment.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepository_Create_PartialFanoutStillSucceeds(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()

	comment := &models.Comment{Content: "hi", PostID: 5, UserID: 10}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "comments"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(101))
	mock.ExpectCommit()

	// Post list update fails mid-fan-out; the author list is still attempted.
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id","comment_ids" FROM "posts"`)).
		WillReturnError(errors.New("connection reset"))
	expectCommentIDFanout(mock, "users", 10, `[]`)

	err := repo.Create(ctx, comment)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepository_SoftDelete_ReversesFanout(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "comments" SET "deleted"=$1`)).
		WithArgs(true, sqlmock.AnyArg(), 100).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	expectCommentIDFanout(mock, "posts", 5, `[100, 101]`)
	expectCommentIDFanout(mock, "users", 10, `[100]`)

	err := repo.SoftDelete(ctx, &models.Comment{ID: 100, PostID: 5, UserID: 10})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepository_Restore_ReAddsToFanout(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "comments" SET "deleted"=$1`)).
		WithArgs(false, sqlmock.AnyArg(), 100).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	expectCommentIDFanout(mock, "posts", 5, `[101]`)
	expectCommentIDFanout(mock, "users", 10, `[]`)

	err := repo.Restore(ctx, &models.Comment{ID: 100, PostID: 5, UserID: 10})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepository_ListByPost_Anonymous(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCommentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "content", "post_id", "user_id", "my_vote"}).
		AddRow(1, "first", 5, 10, 0).
		AddRow(2, "second", 5, 11, 0)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT comments.*, 0 as my_vote FROM "comments" WHERE post_id = $1`)).
		WithArgs(5).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" IN ($1,$2)`)).
		WithArgs(10, 11).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username"}).AddRow(10, "a").AddRow(11, "b"))

	comments, err := repo.ListByPost(context.Background(), 5, 0)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "first", comments[0].Content)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepository_ListByPost_AuthenticatedVoteSubquery(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCommentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "content", "post_id", "user_id", "my_vote"}).
		AddRow(1, "first", 5, 10, 1)
	mock.ExpectQuery(regexp.QuoteMeta(`COALESCE((SELECT value FROM comment_votes WHERE comment_votes.comment_id = comments.id AND comment_votes.user_id = $1), 0) as my_vote`)).
		WithArgs(42, 5).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users"`)).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username"}).AddRow(10, "a"))

	comments, err := repo.ListByPost(context.Background(), 5, 42)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, 1, comments[0].MyVote)
	assert.NoError(t, mock.ExpectationsWereMet())
}
