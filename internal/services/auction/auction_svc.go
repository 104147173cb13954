package auction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Anomaliszt/HiddenDeal/internal/database/db_client"
	"github.com/Anomaliszt/HiddenDeal/internal/ledger"
)

type dbtx = ledger.DBTX

type IAuctionService interface {
	CreateAuction(ctx context.Context, creatorID int64, in CreateAuctionInput) (int64, error)
	GetAuction(ctx context.Context, auctionID, viewerID int64) (*AuctionDetail, error)
	ListAuctions(ctx context.Context, status string, limit, offset int) ([]AuctionDTO, error)
	AuctionBids(ctx context.Context, auctionID int64) ([]BidDTO, error)
	PlaceBid(ctx context.Context, userID, auctionID int64, amount decimal.Decimal) (*PlaceBidResult, error)
	ResolveWinner(ctx context.Context, auctionID int64) (*SettlementResult, error)
	DistributePoolPrize(ctx context.Context, auctionID int64) ([]PoolWinnerDTO, error)
	PoolStanding(ctx context.Context, auctionID int64) (*PoolStandingDTO, error)
}

type auctionService struct {
	db  *sql.DB
	rdc *redis.Client
	ldg *ledger.Ledger
}

func NewAuctionService(db *sql.DB, rdc *redis.Client, ldg *ledger.Ledger) IAuctionService {
	return &auctionService{db: db, rdc: rdc, ldg: ldg}
}

type auctionRow struct {
	ID              int64
	Title           string
	Description     string
	StartingPrice   decimal.Decimal
	Status          string
	CreatedAt       time.Time
	ExpiresAt       time.Time
	WinnerID        sql.NullInt64
	CreatorID       int64
	ItemValue       decimal.NullDecimal
	PoolPrize       decimal.Decimal
	PoolDistributed bool
}

func (a *auctionRow) dto() AuctionDTO {
	dto := AuctionDTO{
		ID:              a.ID,
		Title:           a.Title,
		Description:     a.Description,
		StartingPrice:   a.StartingPrice,
		Status:          a.Status,
		CreatedAt:       a.CreatedAt,
		ExpiresAt:       a.ExpiresAt,
		CreatorID:       a.CreatorID,
		PoolPrize:       a.PoolPrize,
		PoolDistributed: a.PoolDistributed,
	}
	if a.WinnerID.Valid {
		id := a.WinnerID.Int64
		dto.WinnerID = &id
	}
	if a.ItemValue.Valid {
		v := a.ItemValue.Decimal
		dto.ItemValue = &v
	}
	return dto
}

// effectiveStatus derives the lifecycle state from wall clock: expired once
// now has passed expires_at, active otherwise. The only transition there is.
func effectiveStatus(status string, expiresAt, now time.Time) string {
	if now.After(expiresAt) {
		return StatusExpired
	}
	return status
}

const auctionColumns = `id, title, description, starting_price, status,
       created_at, expires_at, winner_id, creator_id, item_value,
       pool_prize, pool_distributed`

func scanAuction(row *sql.Row) (*auctionRow, error) {
	a := &auctionRow{}
	err := row.Scan(&a.ID, &a.Title, &a.Description, &a.StartingPrice,
		&a.Status, &a.CreatedAt, &a.ExpiresAt, &a.WinnerID, &a.CreatorID,
		&a.ItemValue, &a.PoolPrize, &a.PoolDistributed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAuctionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan auction: %w", err)
	}
	return a, nil
}

// lockAuctionTx loads the auction row FOR UPDATE. Every multi-row unit
// touching an auction's bids, pool or wallets starts here, so such units
// serialize per auction.
func (svc *auctionService) lockAuctionTx(ctx context.Context, q dbtx, auctionID int64) (*auctionRow, error) {
	return scanAuction(q.QueryRowContext(ctx,
		`SELECT `+auctionColumns+` FROM auctions WHERE id = $1 FOR UPDATE`,
		auctionID,
	))
}

// reconcileLifecycleTx persists the active->expired flip when the wall clock
// has passed expires_at. Returns the (possibly updated) status.
func (svc *auctionService) reconcileLifecycleTx(ctx context.Context, q dbtx, a *auctionRow, now time.Time) error {
	if effectiveStatus(a.Status, a.ExpiresAt, now) == a.Status {
		return nil
	}
	if _, err := q.ExecContext(ctx,
		`UPDATE auctions SET status = $2 WHERE id = $1`,
		a.ID, StatusExpired,
	); err != nil {
		return fmt.Errorf("expire auction %d: %w", a.ID, err)
	}
	a.Status = StatusExpired
	return nil
}

func (svc *auctionService) CreateAuction(ctx context.Context, creatorID int64, in CreateAuctionInput) (int64, error) {
	if strings.TrimSpace(in.Title) == "" {
		return 0, errors.New("title is required")
	}
	if !in.StartingPrice.IsPositive() {
		return 0, ErrInvalidAmount
	}
	if !in.ExpiresAt.After(time.Now().UTC()) {
		return 0, ErrInvalidExpiry
	}
	itemValue := decimal.NullDecimal{}
	if in.ItemValue != nil {
		if !in.ItemValue.IsPositive() {
			return 0, ErrInvalidItemValue
		}
		itemValue = decimal.NullDecimal{Decimal: *in.ItemValue, Valid: true}
	}

	var id int64
	err := svc.db.QueryRowContext(ctx,
		`INSERT INTO auctions (title, description, starting_price, status, expires_at, creator_id, item_value)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		in.Title, in.Description, in.StartingPrice, StatusActive,
		in.ExpiresAt.UTC(), creatorID, itemValue,
	).Scan(&id)
	if err != nil {
		return 0, db_client.WrapTransient(fmt.Errorf("insert auction: %w", err))
	}

	svc.armExpiryTimer(ctx, id, in.ExpiresAt)
	return id, nil
}

func (svc *auctionService) GetAuction(ctx context.Context, auctionID, viewerID int64) (*AuctionDetail, error) {
	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	a, err := svc.lockAuctionTx(ctx, tx, auctionID)
	if err != nil {
		return nil, db_client.WrapTransient(err)
	}
	if err := svc.reconcileLifecycleTx(ctx, tx, a, time.Now().UTC()); err != nil {
		return nil, db_client.WrapTransient(err)
	}

	bids, err := svc.recomputeUniquenessTx(ctx, tx, auctionID)
	if err != nil {
		return nil, db_client.WrapTransient(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, db_client.WrapTransient(err)
	}

	detail := &AuctionDetail{Auction: a.dto()}
	if lowest := lowestUniqueBid(bids); lowest != nil {
		detail.LowestUnique = &LowestUniqueDTO{
			BidID:  lowest.ID,
			UserID: lowest.UserID,
			Amount: lowest.Amount,
		}
	}
	for _, b := range bids {
		if b.UserID != viewerID {
			continue
		}
		detail.Bids = append(detail.Bids, BidDTO{
			ID:        b.ID,
			AuctionID: auctionID,
			UserID:    b.UserID,
			Amount:    b.Amount,
			IsUnique:  b.IsUnique,
			CreatedAt: b.CreatedAt,
		})
	}
	return detail, nil
}

func (svc *auctionService) ListAuctions(ctx context.Context, status string, limit, offset int) ([]AuctionDTO, error) {
	if limit == 0 {
		limit = 10
	}

	// Set-based lifecycle reconcile before reading, so the listing never
	// shows an auction as active past its expiry.
	if _, err := svc.db.ExecContext(ctx,
		`UPDATE auctions SET status = $1 WHERE status = $2 AND expires_at < now()`,
		StatusExpired, StatusActive,
	); err != nil {
		return nil, db_client.WrapTransient(fmt.Errorf("reconcile auctions: %w", err))
	}

	var (
		rows *sql.Rows
		err  error
	)
	base := `SELECT ` + auctionColumns + ` FROM auctions`
	switch status {
	case StatusActive, StatusExpired:
		rows, err = svc.db.QueryContext(ctx,
			base+` WHERE status = $1 ORDER BY expires_at DESC LIMIT $2 OFFSET $3`,
			status, limit, offset)
	default:
		rows, err = svc.db.QueryContext(ctx,
			base+` ORDER BY expires_at DESC LIMIT $1 OFFSET $2`,
			limit, offset)
	}
	if err != nil {
		return nil, db_client.WrapTransient(err)
	}
	defer rows.Close()

	list := make([]AuctionDTO, 0, limit)
	for rows.Next() {
		a := auctionRow{}
		if err := rows.Scan(&a.ID, &a.Title, &a.Description, &a.StartingPrice,
			&a.Status, &a.CreatedAt, &a.ExpiresAt, &a.WinnerID, &a.CreatorID,
			&a.ItemValue, &a.PoolPrize, &a.PoolDistributed); err != nil {
			return nil, err
		}
		list = append(list, a.dto())
	}
	return list, rows.Err()
}

func (svc *auctionService) AuctionBids(ctx context.Context, auctionID int64) ([]BidDTO, error) {
	var exists bool
	err := svc.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM auctions WHERE id = $1)`, auctionID,
	).Scan(&exists)
	if err != nil {
		return nil, db_client.WrapTransient(err)
	}
	if !exists {
		return nil, ErrAuctionNotFound
	}

	bids, err := svc.loadBidsTx(ctx, svc.db, auctionID)
	if err != nil {
		return nil, db_client.WrapTransient(err)
	}
	out := make([]BidDTO, 0, len(bids))
	for _, b := range bids {
		out = append(out, BidDTO{
			ID:        b.ID,
			AuctionID: auctionID,
			UserID:    b.UserID,
			Amount:    b.Amount,
			IsUnique:  b.IsUnique,
			CreatedAt: b.CreatedAt,
		})
	}
	return out, nil
}

// PlaceBid validates and records a bid, moving funds bidder -> creator/pool
// as one atomic unit. Once cumulative bids reach the auction's item value,
// every bid splits 50% to the creator and 50% into the pool prize.
func (svc *auctionService) PlaceBid(ctx context.Context, userID, auctionID int64, amount decimal.Decimal) (*PlaceBidResult, error) {
	if !ledger.ValidBidAmount(amount) {
		return nil, ErrInvalidAmount
	}

	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	a, err := svc.lockAuctionTx(ctx, tx, auctionID)
	if err != nil {
		return nil, db_client.WrapTransient(err)
	}

	now := time.Now().UTC()
	if now.After(a.ExpiresAt) {
		// Persist the expiry transition, then reject. No funds move.
		if err := svc.reconcileLifecycleTx(ctx, tx, a, now); err != nil {
			return nil, db_client.WrapTransient(err)
		}
		if err := tx.Commit(); err != nil {
			return nil, db_client.WrapTransient(err)
		}
		return nil, ErrAuctionExpired
	}
	if a.Status != StatusActive {
		return nil, ErrAuctionNotActive
	}

	// Wallet locks in ascending user-id order keep cross-auction bids between
	// the same two parties deadlock-free.
	walletIDs := []int64{userID}
	if a.CreatorID != userID {
		walletIDs = append(walletIDs, a.CreatorID)
	}
	sort.Slice(walletIDs, func(i, j int) bool { return walletIDs[i] < walletIDs[j] })
	wallets := make(map[int64]*ledger.Wallet, len(walletIDs))
	for _, id := range walletIDs {
		w, err := svc.ldg.GetOrCreateTx(ctx, tx, id)
		if err != nil {
			return nil, db_client.WrapTransient(err)
		}
		wallets[id] = w
	}
	if wallets[userID].Balance.LessThan(amount) {
		return nil, ledger.ErrInsufficientFunds
	}

	var priorSum decimal.Decimal
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM bids WHERE auction_id = $1`,
		auctionID,
	).Scan(&priorSum)
	if err != nil {
		return nil, db_client.WrapTransient(fmt.Errorf("sum bids %d: %w", auctionID, err))
	}

	// Split decision: once the cumulative total (including this bid) reaches
	// the item value, the bid splits 50/50 between creator and pool.
	creatorShare := amount
	poolShare := decimal.Zero
	if a.ItemValue.Valid && a.ItemValue.Decimal.IsPositive() &&
		priorSum.Add(amount).GreaterThanOrEqual(a.ItemValue.Decimal) {
		creatorShare = amount.Div(decimal.NewFromInt(2))
		poolShare = amount.Sub(creatorShare)
	}

	newBalance, err := svc.ldg.DebitTx(ctx, tx, userID, amount)
	if err != nil {
		return nil, db_client.WrapTransient(err)
	}
	if _, err := svc.ldg.CreditTx(ctx, tx, a.CreatorID, creatorShare); err != nil {
		return nil, db_client.WrapTransient(err)
	}

	poolTotal := a.PoolPrize
	if poolShare.IsPositive() {
		err = tx.QueryRowContext(ctx,
			`UPDATE auctions SET pool_prize = pool_prize + $2 WHERE id = $1
			 RETURNING pool_prize`,
			auctionID, poolShare,
		).Scan(&poolTotal)
		if err != nil {
			return nil, db_client.WrapTransient(fmt.Errorf("grow pool %d: %w", auctionID, err))
		}
	}

	var (
		bidID     int64
		createdAt time.Time
	)
	err = tx.QueryRowContext(ctx,
		`INSERT INTO bids (auction_id, user_id, amount) VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		auctionID, userID, amount,
	).Scan(&bidID, &createdAt)
	if err != nil {
		return nil, db_client.WrapTransient(fmt.Errorf("insert bid: %w", err))
	}

	bids, err := svc.recomputeUniquenessTx(ctx, tx, auctionID)
	if err != nil {
		return nil, db_client.WrapTransient(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, db_client.WrapTransient(err)
	}

	result := &PlaceBidResult{
		BidID:      bidID,
		NewBalance: newBalance,
	}
	if lowest := lowestUniqueBid(bids); lowest != nil && lowest.ID == bidID {
		result.IsCurrentWinner = true
	}
	if poolShare.IsPositive() {
		result.PoolContribution = &poolShare
	}
	if poolTotal.IsPositive() {
		result.CurrentPoolTotal = &poolTotal
	}

	zap.L().Info("bid_placed",
		zap.Int64("auction_id", auctionID),
		zap.Int64("user_id", userID),
		zap.String("amount", amount.String()),
		zap.Bool("is_current_winner", result.IsCurrentWinner),
	)
	svc.publishEvent(ctx, auctionID, eventBidPlaced, bidEvent{
		BidID:     bidID,
		UserID:    userID,
		Amount:    amount,
		PoolTotal: poolTotal,
	})
	return result, nil
}

// ResolveWinner settles an expired auction: the winner is the bidder holding
// the lowest unique bid amount. Settlement is idempotent and triggers the
// one-shot pool distribution when a pool prize accumulated.
func (svc *auctionService) ResolveWinner(ctx context.Context, auctionID int64) (*SettlementResult, error) {
	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	a, err := svc.lockAuctionTx(ctx, tx, auctionID)
	if err != nil {
		return nil, db_client.WrapTransient(err)
	}

	now := time.Now().UTC()
	if now.Before(a.ExpiresAt) {
		return nil, ErrAuctionStillActive
	}
	if err := svc.reconcileLifecycleTx(ctx, tx, a, now); err != nil {
		return nil, db_client.WrapTransient(err)
	}

	// Bids may have arrived up to the expiry boundary.
	bids, err := svc.recomputeUniquenessTx(ctx, tx, auctionID)
	if err != nil {
		return nil, db_client.WrapTransient(err)
	}

	lowest := lowestUniqueBid(bids)
	if lowest == nil {
		// Terminal no-winner outcome: keep the expiry transition and the
		// recomputed flags, leave winner_id unset, do not touch the pool.
		if err := tx.Commit(); err != nil {
			return nil, db_client.WrapTransient(err)
		}
		return nil, ErrNoUniqueBids
	}

	if !a.WinnerID.Valid || a.WinnerID.Int64 != lowest.UserID {
		if _, err := tx.ExecContext(ctx,
			`UPDATE auctions SET winner_id = $2 WHERE id = $1`,
			auctionID, lowest.UserID,
		); err != nil {
			return nil, db_client.WrapTransient(fmt.Errorf("set winner %d: %w", auctionID, err))
		}
	}

	pool := PoolDistributionDTO{Distributed: a.PoolDistributed}
	switch {
	case a.PoolDistributed:
		pool.Winners, err = loadPoolWinnersTx(ctx, tx, auctionID)
		if err != nil {
			return nil, db_client.WrapTransient(err)
		}
	case a.PoolPrize.IsPositive():
		pool.Winners, err = svc.distributeTx(ctx, tx, auctionID, a.PoolPrize, bids)
		if err != nil {
			return nil, db_client.WrapTransient(err)
		}
		pool.Distributed = true
	}

	if err := tx.Commit(); err != nil {
		return nil, db_client.WrapTransient(err)
	}

	result := &SettlementResult{
		AuctionID:     auctionID,
		WinnerID:      lowest.UserID,
		WinningAmount: lowest.Amount,
		WinningBidAt:  lowest.CreatedAt,
		PoolPrize:     a.PoolPrize,
		Pool:          pool,
	}

	zap.L().Info("auction_settled",
		zap.Int64("auction_id", auctionID),
		zap.Int64("winner_id", result.WinnerID),
		zap.String("winning_amount", result.WinningAmount.String()),
		zap.Bool("pool_distributed", pool.Distributed),
	)
	svc.publishEvent(ctx, auctionID, eventSettled, settledEvent{
		WinnerID:      result.WinnerID,
		WinningAmount: result.WinningAmount,
		PoolPrize:     result.PoolPrize,
	})
	return result, nil
}

// DistributePoolPrize runs the one-shot pool distribution on its own. A call
// after the flag is set reports ErrAlreadyDistributed without side effects.
func (svc *auctionService) DistributePoolPrize(ctx context.Context, auctionID int64) ([]PoolWinnerDTO, error) {
	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	a, err := svc.lockAuctionTx(ctx, tx, auctionID)
	if err != nil {
		return nil, db_client.WrapTransient(err)
	}
	if a.PoolDistributed {
		winners, err := loadPoolWinnersTx(ctx, tx, auctionID)
		if err != nil {
			return nil, db_client.WrapTransient(err)
		}
		return winners, ErrAlreadyDistributed
	}
	if !a.PoolPrize.IsPositive() {
		return nil, ErrNoPoolPrize
	}

	bids, err := svc.loadBidsTx(ctx, tx, auctionID)
	if err != nil {
		return nil, db_client.WrapTransient(err)
	}
	winners, err := svc.distributeTx(ctx, tx, auctionID, a.PoolPrize, bids)
	if err != nil {
		return nil, db_client.WrapTransient(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, db_client.WrapTransient(err)
	}

	zap.L().Info("pool_distributed",
		zap.Int64("auction_id", auctionID),
		zap.String("pool_prize", a.PoolPrize.String()),
		zap.Int("winners", len(winners)),
	)
	svc.publishEvent(ctx, auctionID, eventPoolDistributed, poolEvent{Winners: winners})
	return winners, nil
}

// PoolStanding reports the live top-3 bid-count ranking with the share each
// contender would receive, plus the realized winners once distributed.
func (svc *auctionService) PoolStanding(ctx context.Context, auctionID int64) (*PoolStandingDTO, error) {
	a, err := scanAuction(svc.db.QueryRowContext(ctx,
		`SELECT `+auctionColumns+` FROM auctions WHERE id = $1`, auctionID))
	if err != nil {
		return nil, db_client.WrapTransient(err)
	}

	bids, err := svc.loadBidsTx(ctx, svc.db, auctionID)
	if err != nil {
		return nil, db_client.WrapTransient(err)
	}

	standing := &PoolStandingDTO{
		AuctionID:       a.ID,
		PoolPrize:       a.PoolPrize,
		PoolDistributed: a.PoolDistributed,
		TopBidders:      []PoolContenderDTO{},
		Winners:         []PoolWinnerDTO{},
	}
	if a.ItemValue.Valid {
		v := a.ItemValue.Decimal
		standing.ItemValue = &v
	}

	ranked := rankContenders(bids)
	if len(ranked) > len(poolPercentages) {
		ranked = ranked[:len(poolPercentages)]
	}
	for i, c := range ranked {
		pct := poolPercentages[i]
		standing.TopBidders = append(standing.TopBidders, PoolContenderDTO{
			UserID:              c.UserID,
			BidCount:            c.BidCount,
			Rank:                i + 1,
			PotentialPercentage: pct,
			PotentialAmount:     poolShare(a.PoolPrize, pct),
		})
	}

	if a.PoolDistributed {
		standing.Winners, err = loadPoolWinnersTx(ctx, svc.db, auctionID)
		if err != nil {
			return nil, db_client.WrapTransient(err)
		}
	}
	return standing, nil
}
