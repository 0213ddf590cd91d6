package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/reviewpilot/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT
	);

	CREATE TABLE IF NOT EXISTS accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		session_path TEXT,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS reviews (
		uuid TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		account_id INTEGER,
		product_title TEXT,
		product_url TEXT,
		offer_id TEXT,
		cover_image TEXT,
		sku TEXT,
		brand_id TEXT,
		brand_name TEXT,
		order_delivery_type TEXT,
		text TEXT,
		interaction_status TEXT,
		rating INTEGER,
		photos_count INTEGER,
		videos_count INTEGER,
		comments_count INTEGER,
		published_at TEXT,
		is_pinned INTEGER,
		is_quality_control INTEGER,
		chat_url TEXT,
		is_delivery_review INTEGER,
		ai_response TEXT,
		user_response TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_reviews_status ON reviews(status, published_at);

	CREATE TABLE IF NOT EXISTS ai_examples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		product_title TEXT,
		rating INTEGER,
		text TEXT,
		response TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_examples_rating ON ai_examples(rating);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// GetSetting retrieves a single setting value.
func (s *SQLiteStore) GetSetting(ctx context.Context, key string) (string, error) {
	var value sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value.String, nil
}

// SetSetting creates or updates a setting value.
func (s *SQLiteStore) SetSetting(ctx context.Context, key, value string) error {
	query := `
	INSERT INTO settings (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

// GetSettings retrieves all settings rows.
func (s *SQLiteStore) GetSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer closeRows(rows, "settings")

	values := make(map[string]string)
	for rows.Next() {
		var key string
		var value sql.NullString
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting row: %w", err)
		}
		values[key] = value.String
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settings: %w", err)
	}
	return values, nil
}

// ListAccounts retrieves all configured seller accounts.
func (s *SQLiteStore) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, session_path, created_at FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer closeRows(rows, "accounts")

	var accounts []*domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

// GetAccount retrieves one account by id.
func (s *SQLiteStore) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, session_path, created_at FROM accounts WHERE id = ?`, id)

	account, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}

// AddAccount creates an account and returns its assigned id.
func (s *SQLiteStore) AddAccount(ctx context.Context, account *domain.Account) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (name, session_path, created_at) VALUES (?, ?, ?)`,
		account.Name, account.SessionPath, account.CreatedAt.Unix())
	if err != nil {
		return 0, fmt.Errorf("insert account: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("account insert id: %w", err)
	}
	return id, nil
}

// DeleteAccount removes an account.
func (s *SQLiteStore) DeleteAccount(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}

// UpdateAccountSession replaces the session artifact path for an account.
func (s *SQLiteStore) UpdateAccountSession(ctx context.Context, id int64, sessionPath string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET session_path = ? WHERE id = ?`, sessionPath, id)
	if err != nil {
		return fmt.Errorf("update account session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("account %d not found", id)
	}
	return nil
}

// ListReviewUUIDs returns the identifiers of all persisted reviews.
func (s *SQLiteStore) ListReviewUUIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT uuid FROM reviews`)
	if err != nil {
		return nil, fmt.Errorf("query review uuids: %w", err)
	}
	defer closeRows(rows, "review uuids")

	uuids := make(map[string]struct{})
	for rows.Next() {
		var uuid string
		if err := rows.Scan(&uuid); err != nil {
			return nil, fmt.Errorf("scan review uuid: %w", err)
		}
		uuids[uuid] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review uuids: %w", err)
	}
	return uuids, nil
}

// UpsertReview inserts or updates a review. The CASE on conflict keeps a
// completed review completed even if a later fetch re-surfaces the same uuid.
func (s *SQLiteStore) UpsertReview(ctx context.Context, review *domain.Review) error {
	query := `
	INSERT INTO reviews (
		uuid, status, account_id, product_title, product_url, offer_id, cover_image, sku,
		brand_id, brand_name, order_delivery_type, text, interaction_status,
		rating, photos_count, videos_count, comments_count, published_at,
		is_pinned, is_quality_control, chat_url, is_delivery_review, ai_response, user_response
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(uuid) DO UPDATE SET
		status = CASE
			WHEN reviews.status = 'completed' THEN reviews.status
			ELSE excluded.status
		END,
		account_id = excluded.account_id,
		ai_response = excluded.ai_response`

	status := review.Status
	if status == "" {
		status = domain.StatusNew
	}

	_, err := s.db.ExecContext(ctx, query,
		review.UUID, status, review.AccountID,
		review.Product.Title, review.Product.URL, review.Product.OfferID,
		review.Product.CoverImage, review.Product.SKU,
		review.Product.BrandInfo.ID, review.Product.BrandInfo.Name,
		review.OrderDeliveryType, review.Text, review.InteractionStatus,
		review.Rating, review.PhotosCount, review.VideosCount, review.CommentsCount,
		review.PublishedAt, boolToInt(review.IsPinned), boolToInt(review.IsQualityControl),
		review.ChatURL, boolToInt(review.IsDeliveryReview),
		review.AIResponse, review.UserResponse,
	)
	if err != nil {
		return fmt.Errorf("upsert review: %w", err)
	}
	return nil
}

// GetReview retrieves one review by uuid.
func (s *SQLiteStore) GetReview(ctx context.Context, uuid string) (*domain.Review, error) {
	row := s.db.QueryRowContext(ctx, selectReviewQuery+` WHERE uuid = ?`, uuid)
	review, err := scanReview(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return review, nil
}

// ListReviews retrieves reviews with the given status, newest first.
func (s *SQLiteStore) ListReviews(ctx context.Context, status string) ([]*domain.Review, error) {
	rows, err := s.db.QueryContext(ctx,
		selectReviewQuery+` WHERE status = ? ORDER BY published_at DESC`, status)
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	defer closeRows(rows, "reviews")

	var reviews []*domain.Review
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, review)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reviews: %w", err)
	}
	return reviews, nil
}

// UpdateReviewStatus sets the status and final reply text for a review.
func (s *SQLiteStore) UpdateReviewStatus(ctx context.Context, uuid, status, response string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE reviews SET status = ?, user_response = ? WHERE uuid = ?`,
		status, response, uuid)
	if err != nil {
		return fmt.Errorf("update review status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateReviewStatus affected 0 rows", "uuid", uuid)
	}
	return nil
}

// ListExamples retrieves all curated examples, newest first.
func (s *SQLiteStore) ListExamples(ctx context.Context) ([]*domain.Example, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, product_title, rating, text, response, created_at FROM ai_examples ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query examples: %w", err)
	}
	defer closeRows(rows, "examples")
	return collectExamples(rows)
}

// ListExamplesForRating retrieves up to limit examples with the given rating.
func (s *SQLiteStore) ListExamplesForRating(ctx context.Context, rating, limit int) ([]*domain.Example, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, product_title, rating, text, response, created_at
		 FROM ai_examples WHERE rating = ? ORDER BY id DESC LIMIT ?`, rating, limit)
	if err != nil {
		return nil, fmt.Errorf("query examples for rating: %w", err)
	}
	defer closeRows(rows, "examples for rating")
	return collectExamples(rows)
}

// SaveExample inserts or updates a curated example.
func (s *SQLiteStore) SaveExample(ctx context.Context, example *domain.Example) (int64, error) {
	if example.ID == 0 {
		result, err := s.db.ExecContext(ctx,
			`INSERT INTO ai_examples (product_title, rating, text, response, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			example.ProductTitle, example.Rating, example.Text, example.Response,
			example.CreatedAt.Unix())
		if err != nil {
			return 0, fmt.Errorf("insert example: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("example insert id: %w", err)
		}
		return id, nil
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE ai_examples SET product_title = ?, rating = ?, text = ?, response = ? WHERE id = ?`,
		example.ProductTitle, example.Rating, example.Text, example.Response, example.ID)
	if err != nil {
		return 0, fmt.Errorf("update example: %w", err)
	}
	return example.ID, nil
}

// DeleteExample removes a curated example.
func (s *SQLiteStore) DeleteExample(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM ai_examples WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete example: %w", err)
	}
	return nil
}

const selectReviewQuery = `
	SELECT uuid, status, account_id, product_title, product_url, offer_id, cover_image, sku,
	       brand_id, brand_name, order_delivery_type, text, interaction_status,
	       rating, photos_count, videos_count, comments_count, published_at,
	       is_pinned, is_quality_control, chat_url, is_delivery_review, ai_response, user_response
	FROM reviews`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var account domain.Account
	var sessionPath sql.NullString
	var createdAt int64

	err := row.Scan(&account.ID, &account.Name, &sessionPath, &createdAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan account row: %w", err)
	}

	account.SessionPath = sessionPath.String
	account.CreatedAt = time.Unix(createdAt, 0)
	return &account, nil
}

func scanReview(row rowScanner) (*domain.Review, error) {
	var review domain.Review
	var accountID sql.NullInt64
	var productTitle, productURL, offerID, coverImage, sku sql.NullString
	var brandID, brandName, orderDeliveryType, text, interactionStatus sql.NullString
	var rating, photosCount, videosCount, commentsCount sql.NullInt64
	var publishedAt, chatURL, aiResponse, userResponse sql.NullString
	var isPinned, isQualityControl, isDeliveryReview sql.NullInt64

	err := row.Scan(
		&review.UUID, &review.Status, &accountID,
		&productTitle, &productURL, &offerID, &coverImage, &sku,
		&brandID, &brandName, &orderDeliveryType, &text, &interactionStatus,
		&rating, &photosCount, &videosCount, &commentsCount, &publishedAt,
		&isPinned, &isQualityControl, &chatURL, &isDeliveryReview,
		&aiResponse, &userResponse,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan review row: %w", err)
	}

	review.AccountID = accountID.Int64
	review.Product = domain.Product{
		Title:      productTitle.String,
		URL:        productURL.String,
		OfferID:    offerID.String,
		CoverImage: coverImage.String,
		SKU:        sku.String,
		BrandInfo: domain.BrandInfo{
			ID:   brandID.String,
			Name: brandName.String,
		},
	}
	review.OrderDeliveryType = orderDeliveryType.String
	review.Text = text.String
	review.InteractionStatus = interactionStatus.String
	review.Rating = int(rating.Int64)
	review.PhotosCount = int(photosCount.Int64)
	review.VideosCount = int(videosCount.Int64)
	review.CommentsCount = int(commentsCount.Int64)
	review.PublishedAt = publishedAt.String
	review.IsPinned = isPinned.Int64 != 0
	review.IsQualityControl = isQualityControl.Int64 != 0
	review.ChatURL = chatURL.String
	review.IsDeliveryReview = isDeliveryReview.Int64 != 0
	review.AIResponse = aiResponse.String
	review.UserResponse = userResponse.String

	return &review, nil
}

func collectExamples(rows *sql.Rows) ([]*domain.Example, error) {
	var examples []*domain.Example
	for rows.Next() {
		var example domain.Example
		var productTitle, text, response sql.NullString
		var createdAt int64

		if err := rows.Scan(&example.ID, &productTitle, &example.Rating,
			&text, &response, &createdAt); err != nil {
			return nil, fmt.Errorf("scan example row: %w", err)
		}

		example.ProductTitle = productTitle.String
		example.Text = text.String
		example.Response = response.String
		example.CreatedAt = time.Unix(createdAt, 0)
		examples = append(examples, &example)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate examples: %w", err)
	}
	return examples, nil
}

func closeRows(rows *sql.Rows, what string) {
	if err := rows.Close(); err != nil {
		slog.Warn("failed to close rows", "what", what, "error", err)
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
