package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"voteledger/contexts/governance/voting-ledger/domain/address"
	"voteledger/contexts/governance/voting-ledger/domain/entities"
	domainerrors "voteledger/contexts/governance/voting-ledger/domain/errors"
	"voteledger/contexts/governance/voting-ledger/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Migrate creates the ledger tables. Each record table is keyed by the derived
// slot, so the primary key is the only uniqueness constraint the ledger needs.
func (r *Repository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(
		&pollRow{},
		&candidateRow{},
		&voteRow{},
		&outboxRow{},
	)
}

func (r *Repository) CreatePoll(ctx context.Context, addr address.Address, poll entities.Poll) (entities.Poll, bool, error) {
	row := pollRowFrom(addr, poll)
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slot"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil && !isUniqueViolation(create.Error) {
		return entities.Poll{}, false, r.logError("ledger_repo_create_poll_failed", create.Error,
			"slot", row.Slot,
			"poll_id", poll.PollID,
		)
	}
	if create.Error == nil && create.RowsAffected > 0 {
		return row.toEntity(), true, nil
	}

	var existing pollRow
	if err := r.db.WithContext(ctx).
		Where("slot = ?", row.Slot).
		First(&existing).Error; err != nil {
		return entities.Poll{}, false, r.logError("ledger_repo_create_poll_load_existing_failed", err,
			"slot", row.Slot,
			"poll_id", poll.PollID,
		)
	}
	return existing.toEntity(), false, nil
}

func (r *Repository) GetPoll(ctx context.Context, addr address.Address) (entities.Poll, error) {
	var row pollRow
	err := r.db.WithContext(ctx).
		Where("slot = ?", addr.String()).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Poll{}, domainerrors.ErrPollNotFound
		}
		return entities.Poll{}, r.logError("ledger_repo_get_poll_failed", err, "slot", addr.String())
	}
	return row.toEntity(), nil
}

func (r *Repository) ListPolls(ctx context.Context) ([]entities.Poll, error) {
	var rows []pollRow
	if err := r.db.WithContext(ctx).
		Order("poll_id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("ledger_repo_list_polls_failed", err)
	}
	items := make([]entities.Poll, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) CreateCandidate(ctx context.Context, addr address.Address, candidate entities.Candidate) (entities.Candidate, bool, error) {
	row := candidateRowFrom(addr, candidate)
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slot"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil && !isUniqueViolation(create.Error) {
		return entities.Candidate{}, false, r.logError("ledger_repo_create_candidate_failed", create.Error,
			"slot", row.Slot,
			"poll_id", candidate.PollID,
			"candidate_id", row.CandidateID,
		)
	}
	if create.Error == nil && create.RowsAffected > 0 {
		return row.toEntity(), true, nil
	}

	var existing candidateRow
	if err := r.db.WithContext(ctx).
		Where("slot = ?", row.Slot).
		First(&existing).Error; err != nil {
		return entities.Candidate{}, false, r.logError("ledger_repo_create_candidate_load_existing_failed", err,
			"slot", row.Slot,
			"poll_id", candidate.PollID,
			"candidate_id", row.CandidateID,
		)
	}
	return existing.toEntity(), false, nil
}

func (r *Repository) GetCandidate(ctx context.Context, addr address.Address) (entities.Candidate, error) {
	var row candidateRow
	err := r.db.WithContext(ctx).
		Where("slot = ?", addr.String()).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Candidate{}, domainerrors.ErrCandidateNotFound
		}
		return entities.Candidate{}, r.logError("ledger_repo_get_candidate_failed", err, "slot", addr.String())
	}
	return row.toEntity(), nil
}

func (r *Repository) ListCandidatesByPoll(ctx context.Context, pollID uint64) ([]entities.Candidate, error) {
	var rows []candidateRow
	if err := r.db.WithContext(ctx).
		Where("poll_id = ?", pollID).
		Order("candidate_id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("ledger_repo_list_candidates_failed", err, "poll_id", pollID)
	}
	items := make([]entities.Candidate, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) IncrementVoteCount(ctx context.Context, addr address.Address) error {
	result := r.db.WithContext(ctx).
		Model(&candidateRow{}).
		Where("slot = ?", addr.String()).
		UpdateColumn("vote_count", gorm.Expr("vote_count + 1"))
	if result.Error != nil {
		return r.logError("ledger_repo_increment_vote_count_failed", result.Error, "slot", addr.String())
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrCandidateNotFound
	}
	return nil
}

func (r *Repository) RaiseVoteCount(ctx context.Context, addr address.Address, atLeast uint64) error {
	result := r.db.WithContext(ctx).
		Model(&candidateRow{}).
		Where("slot = ?", addr.String()).
		Where("vote_count < ?", atLeast).
		UpdateColumn("vote_count", atLeast)
	if result.Error != nil {
		return r.logError("ledger_repo_raise_vote_count_failed", result.Error,
			"slot", addr.String(),
			"at_least", atLeast,
		)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// Zero rows means the counter was already at or above the floor, or the
	// candidate is missing. Distinguish the two.
	var existing candidateRow
	err := r.db.WithContext(ctx).
		Select("slot").
		Where("slot = ?", addr.String()).
		First(&existing).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domainerrors.ErrCandidateNotFound
		}
		return r.logError("ledger_repo_raise_vote_count_lookup_failed", err, "slot", addr.String())
	}
	return nil
}

func (r *Repository) CreateVote(ctx context.Context, addr address.Address, record entities.VoteRecord) (entities.VoteRecord, bool, error) {
	row := voteRowFrom(addr, record)
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slot"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil && !isUniqueViolation(create.Error) {
		return entities.VoteRecord{}, false, r.logError("ledger_repo_create_vote_failed", create.Error,
			"slot", row.Slot,
			"poll_id", record.PollID,
			"voter_id", row.VoterID,
		)
	}
	if create.Error == nil && create.RowsAffected > 0 {
		return row.toEntity(), true, nil
	}

	var existing voteRow
	if err := r.db.WithContext(ctx).
		Where("slot = ?", row.Slot).
		First(&existing).Error; err != nil {
		return entities.VoteRecord{}, false, r.logError("ledger_repo_create_vote_load_existing_failed", err,
			"slot", row.Slot,
			"poll_id", record.PollID,
			"voter_id", row.VoterID,
		)
	}
	return existing.toEntity(), false, nil
}

func (r *Repository) GetVote(ctx context.Context, addr address.Address) (entities.VoteRecord, error) {
	var row voteRow
	err := r.db.WithContext(ctx).
		Where("slot = ?", addr.String()).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.VoteRecord{}, domainerrors.ErrVoteNotFound
		}
		return entities.VoteRecord{}, r.logError("ledger_repo_get_vote_failed", err, "slot", addr.String())
	}
	return row.toEntity(), nil
}

func (r *Repository) CountVotesForCandidate(ctx context.Context, pollID uint64, candidateID string) (uint64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&voteRow{}).
		Where("poll_id = ?", pollID).
		Where("candidate_id = ?", strings.TrimSpace(candidateID)).
		Count(&count).Error; err != nil {
		return 0, r.logError("ledger_repo_count_votes_failed", err,
			"poll_id", pollID,
			"candidate_id", strings.TrimSpace(candidateID),
		)
	}
	return uint64(count), nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return r.logError("ledger_repo_append_outbox_marshal_failed", err,
			"event_id", strings.TrimSpace(envelope.EventID),
			"event_type", strings.TrimSpace(envelope.EventType),
		)
	}
	row := outboxRow{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return r.logError("ledger_repo_append_outbox_insert_failed", create.Error,
			"outbox_id", row.OutboxID,
		)
	}
	if create.RowsAffected > 0 {
		return nil
	}

	var existing outboxRow
	if err := r.db.WithContext(ctx).
		Select("payload").
		Where("outbox_id = ?", row.OutboxID).
		First(&existing).Error; err != nil {
		return r.logError("ledger_repo_append_outbox_load_existing_failed", err,
			"outbox_id", row.OutboxID,
		)
	}
	if !bytes.Equal(existing.Payload, row.Payload) {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxRow
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("ledger_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxRow{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("ledger_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "governance/voting-ledger",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("ledger repository operation failed", fields...)
	return err
}

type pollRow struct {
	Slot           string    `gorm:"column:slot;primaryKey;size:64"`
	PollID         uint64    `gorm:"column:poll_id;index"`
	Description    string    `gorm:"column:description"`
	CandidateCount uint64    `gorm:"column:candidate_count"`
	StartTime      uint64    `gorm:"column:start_time"`
	EndTime        uint64    `gorm:"column:end_time"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

func (pollRow) TableName() string {
	return "polls"
}

func pollRowFrom(addr address.Address, poll entities.Poll) pollRow {
	return pollRow{
		Slot:           addr.String(),
		PollID:         poll.PollID,
		Description:    poll.Description,
		CandidateCount: poll.CandidateCount,
		StartTime:      poll.StartTime,
		EndTime:        poll.EndTime,
		CreatedAt:      time.Now().UTC(),
	}
}

func (m pollRow) toEntity() entities.Poll {
	return entities.Poll{
		PollID:         m.PollID,
		Description:    m.Description,
		CandidateCount: m.CandidateCount,
		StartTime:      m.StartTime,
		EndTime:        m.EndTime,
	}
}

type candidateRow struct {
	Slot        string    `gorm:"column:slot;primaryKey;size:64"`
	PollID      uint64    `gorm:"column:poll_id;index"`
	CandidateID string    `gorm:"column:candidate_id"`
	Name        string    `gorm:"column:name"`
	Description string    `gorm:"column:description"`
	VoteCount   uint64    `gorm:"column:vote_count"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (candidateRow) TableName() string {
	return "candidates"
}

func candidateRowFrom(addr address.Address, candidate entities.Candidate) candidateRow {
	return candidateRow{
		Slot:        addr.String(),
		PollID:      candidate.PollID,
		CandidateID: strings.TrimSpace(candidate.CandidateID),
		Name:        candidate.Name,
		Description: candidate.Description,
		VoteCount:   candidate.VoteCount,
		CreatedAt:   time.Now().UTC(),
	}
}

func (m candidateRow) toEntity() entities.Candidate {
	return entities.Candidate{
		CandidateID: m.CandidateID,
		PollID:      m.PollID,
		Name:        m.Name,
		Description: m.Description,
		VoteCount:   m.VoteCount,
	}
}

type voteRow struct {
	Slot        string    `gorm:"column:slot;primaryKey;size:64"`
	PollID      uint64    `gorm:"column:poll_id;index"`
	VoterID     string    `gorm:"column:voter_id"`
	CandidateID string    `gorm:"column:candidate_id"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (voteRow) TableName() string {
	return "votes"
}

func voteRowFrom(addr address.Address, record entities.VoteRecord) voteRow {
	return voteRow{
		Slot:        addr.String(),
		PollID:      record.PollID,
		VoterID:     strings.TrimSpace(record.Voter),
		CandidateID: strings.TrimSpace(record.Candidate),
		CreatedAt:   time.Now().UTC(),
	}
}

func (m voteRow) toEntity() entities.VoteRecord {
	return entities.VoteRecord{
		Voter:     m.VoterID,
		PollID:    m.PollID,
		Candidate: m.CandidateID,
	}
}

type outboxRow struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxRow) TableName() string {
	return "ledger_outbox"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.PollRepository = (*Repository)(nil)
var _ ports.CandidateRepository = (*Repository)(nil)
var _ ports.VoteRepository = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
