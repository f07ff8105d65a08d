package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/socialfeed/backend/internal/db"
	"github.com/socialfeed/backend/internal/models"
)

const userColumns = `id, first_name, last_name, email, password_hash, location, occupation, picture_path,
        friends, viewed_profile, impressions, created_at, updated_at`

const postColumns = `id, user_id, first_name, last_name, location, description, picture_path,
        user_picture_path, likes, comments, created_at, updated_at`

func withConn(ctx context.Context, pool db.Pool, fn func(conn *pgxpool.Conn) error) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()
	return fn(conn)
}

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	pool db.Pool
	now  func() time.Time
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

// Create persists a new user record.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	friends := user.Friends
	if friends == nil {
		friends = []string{}
	}

	return withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		_, err := conn.Exec(ctx, `
        INSERT INTO users (`+userColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
    `, user.ID, user.FirstName, user.LastName, user.Email, user.Password, user.Location, user.Occupation,
			user.PicturePath, friends, user.ViewedProfile, user.Impressions, user.CreatedAt, user.UpdatedAt)
		if err != nil {
			return translatePgError("insert user", err)
		}
		return nil
	})
}

// FindByID fetches a user by identifier.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	var user models.User
	err := withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		row := conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
		var err error
		user, err = scanUser(row)
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("select user by id: %w", err)
	}
	return user, nil
}

// FindByIDs fetches users in the order of ids, silently skipping unknown ids.
func (r *PostgresUserRepository) FindByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}

	byID := make(map[string]models.User, len(ids))
	err := withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, ids)
		if err != nil {
			return fmt.Errorf("query users: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			user, err := scanUser(rows)
			if err != nil {
				return fmt.Errorf("scan user: %w", err)
			}
			byID[user.ID] = user
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate users: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return orderUsers(ids, byID), nil
}

// FindByEmail fetches a user by their email address.
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		row := conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
		var err error
		user, err = scanUser(row)
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("select user by email: %w", err)
	}
	return user, nil
}

// UpdateFriends replaces the friend list of one user.
func (r *PostgresUserRepository) UpdateFriends(ctx context.Context, id string, friends []string) error {
	return withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		return updateFriends(ctx, conn, id, friends, r.now())
	})
}

// UpdateFriendPair replaces both friend lists inside one transaction.
func (r *PostgresUserRepository) UpdateFriendPair(ctx context.Context, userID string, userFriends []string, otherID string, otherFriends []string) error {
	return withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		tx, err := conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
		if err != nil {
			return fmt.Errorf("begin friend pair transaction: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		now := r.now()
		if err := updateFriends(ctx, tx, userID, userFriends, now); err != nil {
			return err
		}
		if err := updateFriends(ctx, tx, otherID, otherFriends, now); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit friend pair transaction: %w", err)
		}
		return nil
	})
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func updateFriends(ctx context.Context, q execer, id string, friends []string, now time.Time) error {
	if friends == nil {
		friends = []string{}
	}
	tag, err := q.Exec(ctx, `
        UPDATE users
        SET friends = $2, updated_at = $3
        WHERE id = $1
    `, id, friends, now)
	if err != nil {
		return translatePgError("update friends", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PostgresPostRepository provides PostgreSQL-backed persistence for posts.
type PostgresPostRepository struct {
	pool db.Pool
	now  func() time.Time
}

// NewPostgresPostRepository constructs a post repository backed by PostgreSQL.
func NewPostgresPostRepository(pool db.Pool) *PostgresPostRepository {
	return &PostgresPostRepository{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

// Create stores a new post.
func (r *PostgresPostRepository) Create(ctx context.Context, post models.Post) error {
	comments := post.Comments
	if comments == nil {
		comments = []string{}
	}

	return withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		_, err := conn.Exec(ctx, `
        INSERT INTO posts (`+postColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
    `, post.ID, post.UserID, post.FirstName, post.LastName, post.Location, post.Description, post.PicturePath,
			post.UserPicturePath, post.Likes.IDs(), comments, post.CreatedAt, post.UpdatedAt)
		if err != nil {
			return translatePgError("insert post", err)
		}
		return nil
	})
}

// FindAll returns every post in insertion order.
func (r *PostgresPostRepository) FindAll(ctx context.Context) ([]models.Post, error) {
	return r.list(ctx, `SELECT `+postColumns+` FROM posts ORDER BY created_at ASC, id ASC`)
}

// FindByAuthor returns the posts written by userID in insertion order.
func (r *PostgresPostRepository) FindByAuthor(ctx context.Context, userID string) ([]models.Post, error) {
	return r.list(ctx, `SELECT `+postColumns+` FROM posts WHERE user_id = $1 ORDER BY created_at ASC, id ASC`, userID)
}

// FindByID fetches one post.
func (r *PostgresPostRepository) FindByID(ctx context.Context, id string) (models.Post, error) {
	var post models.Post
	err := withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		var err error
		post, err = scanPost(conn.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Post{}, ErrNotFound
		}
		return models.Post{}, fmt.Errorf("select post: %w", err)
	}
	return post, nil
}

// UpdateLikes replaces the like set of a post and returns the stored result.
func (r *PostgresPostRepository) UpdateLikes(ctx context.Context, id string, likes models.LikeSet) (models.Post, error) {
	var post models.Post
	err := withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		row := conn.QueryRow(ctx, `
        UPDATE posts
        SET likes = $2, updated_at = $3
        WHERE id = $1
        RETURNING `+postColumns, id, likes.IDs(), r.now())
		var err error
		post, err = scanPost(row)
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Post{}, ErrNotFound
		}
		return models.Post{}, fmt.Errorf("update post likes: %w", err)
	}
	return post, nil
}

func (r *PostgresPostRepository) list(ctx context.Context, query string, args ...any) ([]models.Post, error) {
	posts := []models.Post{}
	err := withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query posts: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			post, err := scanPost(rows)
			if err != nil {
				return fmt.Errorf("scan post: %w", err)
			}
			posts = append(posts, post)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate posts: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return posts, nil
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.FirstName, &user.LastName, &user.Email, &user.Password, &user.Location,
		&user.Occupation, &user.PicturePath, &user.Friends, &user.ViewedProfile, &user.Impressions,
		&user.CreatedAt, &user.UpdatedAt)
	if user.Friends == nil {
		user.Friends = []string{}
	}
	return user, err
}

func scanPost(row pgx.Row) (models.Post, error) {
	var (
		post  models.Post
		likes []string
	)
	err := row.Scan(&post.ID, &post.UserID, &post.FirstName, &post.LastName, &post.Location, &post.Description,
		&post.PicturePath, &post.UserPicturePath, &likes, &post.Comments, &post.CreatedAt, &post.UpdatedAt)
	post.Likes = models.NewLikeSet(likes...)
	if post.Comments == nil {
		post.Comments = []string{}
	}
	return post, err
}

func orderUsers(ids []string, byID map[string]models.User) []models.User {
	users := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if user, ok := byID[id]; ok {
			users = append(users, user)
		}
	}
	return users
}

var _ UserRepository = (*PostgresUserRepository)(nil)
var _ FriendPairWriter = (*PostgresUserRepository)(nil)
var _ PostRepository = (*PostgresPostRepository)(nil)
