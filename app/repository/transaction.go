package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/renthouse/ms-go-payments/app/entity"
)

var (
	ErrTransactionNotFound      = errors.New("transaction not found")
	ErrTransactionAlreadyExists = errors.New("transaction already exists")
)

// ReturnUpdate carries the browser-relayed result recorded on the
// processing -> pending_confirmation transition.
type ReturnUpdate struct {
	ResponseCode string
	Message      string
}

// IPNUpdate carries the server-to-server result recorded on the terminal
// transition.
type IPNUpdate struct {
	ResponseCode string
	GatewayTxnNo string
	BankCode     string
	BankTranNo   string
	PayDate      string
	CardType     string
}

type TransactionFilter struct {
	UserID    string
	HasStatus bool
	Status    entity.TransactionStatus
	Limit     int32
	Offset    int32
}

type TransactionRepository struct {
	db DBTX
}

func NewTransactionRepository(db DBTX) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const transactionColumns = `
	id, transaction_code, gateway_txn_no, user_id, listing_id,
	amount_minor, description, status,
	return_response_code, return_message,
	ipn_response_code, bank_code, bank_tran_no, pay_date, card_type,
	confirmed_via, payment_url, ip_address, user_agent, retry_count,
	notify_url, notify_delivery_status, notify_delivery_attempts,
	notify_delivery_next_at, notify_delivery_last_error,
	created_at, updated_at, expires_at, confirmed_at, failed_at`

func (r *TransactionRepository) Create(ctx context.Context, txn *entity.Transaction) error {
	query := `
		INSERT INTO transactions (
			transaction_code, gateway_txn_no, user_id, listing_id,
			amount_minor, description, status,
			return_response_code, return_message,
			ipn_response_code, bank_code, bank_tran_no, pay_date, card_type,
			confirmed_via, payment_url, ip_address, user_agent, retry_count,
			notify_url, notify_delivery_status, notify_delivery_attempts,
			notify_delivery_next_at, notify_delivery_last_error,
			created_at, updated_at, expires_at, confirmed_at, failed_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		txn.TransactionCode,
		nullableStringValue(txn.GatewayTxnNo),
		txn.UserID,
		nullableStringValue(txn.ListingID),
		txn.AmountMinor,
		txn.Description,
		string(txn.Status),
		nullableStringValue(txn.ReturnResponseCode),
		nullableStringValue(txn.ReturnMessage),
		nullableStringValue(txn.IPNResponseCode),
		nullableStringValue(txn.BankCode),
		nullableStringValue(txn.BankTranNo),
		nullableStringValue(txn.PayDate),
		nullableStringValue(txn.CardType),
		nullableStringValue(txn.ConfirmedVia),
		nullableStringValue(txn.PaymentURL),
		txn.IPAddress,
		nullableStringValue(txn.UserAgent),
		txn.RetryCount,
		txn.NotifyURL,
		txn.NotifyDeliveryStatus,
		txn.NotifyDeliveryAttempts,
		nullableTimeValue(txn.NotifyDeliveryNextAt),
		nullableStringValue(txn.NotifyDeliveryLastErr),
		txn.CreatedAt,
		txn.UpdatedAt,
		txn.ExpiresAt,
		nullableTimeValue(txn.ConfirmedAt),
		nullableTimeValue(txn.FailedAt),
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrTransactionAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	txn.ID = uint64(id)
	return nil
}

func (r *TransactionRepository) FindByCode(ctx context.Context, transactionCode string) (*entity.Transaction, error) {
	query := `SELECT` + transactionColumns + `
		FROM transactions
		WHERE transaction_code = ?
		LIMIT 1
	`

	txn := &entity.Transaction{}
	if err := scanTransaction(r.db.QueryRowContext(ctx, query, transactionCode), txn); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return txn, nil
}

func (r *TransactionRepository) List(ctx context.Context, filter TransactionFilter) ([]*entity.Transaction, error) {
	query := `SELECT` + transactionColumns + ` FROM transactions`

	conditions := make([]string, 0, 2)
	args := make([]interface{}, 0, 4)

	if strings.TrimSpace(filter.UserID) != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.HasStatus {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// MarkPendingConfirmation advances processing -> pending_confirmation and
// records the return-channel result. The status guard makes the update a
// compare-and-swap: it reports false when the transaction was not in
// processing anymore, and the caller must not run side effects.
func (r *TransactionRepository) MarkPendingConfirmation(ctx context.Context, transactionCode string, update ReturnUpdate, now time.Time) (bool, error) {
	query := `
		UPDATE transactions SET
			status = ?,
			return_response_code = ?,
			return_message = ?,
			updated_at = ?
		WHERE transaction_code = ? AND status = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		string(entity.StatusPendingConfirmation),
		update.ResponseCode,
		update.Message,
		now,
		transactionCode,
		string(entity.StatusProcessing),
	)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// MarkCompleted performs the authoritative terminal transition from the
// IPN channel and arms the owner-notification delivery in the same
// statement, so exactly one caller can ever observe the swap.
func (r *TransactionRepository) MarkCompleted(ctx context.Context, transactionCode string, update IPNUpdate, now time.Time) (bool, error) {
	query := `
		UPDATE transactions SET
			status = ?,
			gateway_txn_no = ?,
			ipn_response_code = ?,
			bank_code = ?,
			bank_tran_no = ?,
			pay_date = ?,
			card_type = ?,
			confirmed_via = ?,
			confirmed_at = ?,
			notify_delivery_status = ?,
			notify_delivery_attempts = 0,
			notify_delivery_next_at = ?,
			notify_delivery_last_error = NULL,
			updated_at = ?
		WHERE transaction_code = ? AND status IN (?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		string(entity.StatusCompleted),
		update.GatewayTxnNo,
		update.ResponseCode,
		update.BankCode,
		update.BankTranNo,
		update.PayDate,
		update.CardType,
		entity.ConfirmedViaIPN,
		now,
		entity.NotifyDeliveryPending,
		now,
		now,
		transactionCode,
		string(entity.StatusProcessing),
		string(entity.StatusPendingConfirmation),
	)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *TransactionRepository) MarkFailed(ctx context.Context, transactionCode string, update IPNUpdate, now time.Time) (bool, error) {
	query := `
		UPDATE transactions SET
			status = ?,
			gateway_txn_no = ?,
			ipn_response_code = ?,
			bank_code = ?,
			bank_tran_no = ?,
			pay_date = ?,
			card_type = ?,
			confirmed_via = ?,
			failed_at = ?,
			updated_at = ?
		WHERE transaction_code = ? AND status IN (?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		string(entity.StatusFailed),
		update.GatewayTxnNo,
		update.ResponseCode,
		update.BankCode,
		update.BankTranNo,
		update.PayDate,
		update.CardType,
		entity.ConfirmedViaIPN,
		now,
		now,
		transactionCode,
		string(entity.StatusProcessing),
		string(entity.StatusPendingConfirmation),
	)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *TransactionRepository) MarkCancelled(ctx context.Context, transactionCode string, now time.Time) (bool, error) {
	return r.markTerminal(ctx, transactionCode, entity.StatusCancelled, now)
}

func (r *TransactionRepository) MarkExpired(ctx context.Context, transactionCode string, now time.Time) (bool, error) {
	return r.markTerminal(ctx, transactionCode, entity.StatusExpired, now)
}

func (r *TransactionRepository) markTerminal(ctx context.Context, transactionCode string, status entity.TransactionStatus, now time.Time) (bool, error) {
	query := `
		UPDATE transactions SET
			status = ?,
			updated_at = ?
		WHERE transaction_code = ? AND status IN (?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		string(status),
		now,
		transactionCode,
		string(entity.StatusProcessing),
		string(entity.StatusPendingConfirmation),
	)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// UpdatePaymentURL stores a regenerated redirect URL. Guarded on
// processing so a transaction that reached any later state keeps the URL
// it was actually paid through.
func (r *TransactionRepository) UpdatePaymentURL(ctx context.Context, transactionCode, paymentURL string, retryCount int32, expiresAt, now time.Time) (bool, error) {
	query := `
		UPDATE transactions SET
			payment_url = ?,
			retry_count = ?,
			expires_at = ?,
			updated_at = ?
		WHERE transaction_code = ? AND status = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		paymentURL,
		retryCount,
		expiresAt,
		now,
		transactionCode,
		string(entity.StatusProcessing),
	)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *TransactionRepository) ListExpired(ctx context.Context, now time.Time, limit int32) ([]*entity.Transaction, error) {
	query := `SELECT` + transactionColumns + `
		FROM transactions
		WHERE status IN (?, ?)
		  AND expires_at < ?
		ORDER BY expires_at ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query,
		string(entity.StatusProcessing),
		string(entity.StatusPendingConfirmation),
		now,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTransactions(rows)
}

func (r *TransactionRepository) ListDueNotifyDispatch(ctx context.Context, now time.Time, limit int32) ([]*entity.Transaction, error) {
	query := `SELECT` + transactionColumns + `
		FROM transactions
		WHERE notify_delivery_status = ?
		  AND notify_delivery_next_at IS NOT NULL
		  AND notify_delivery_next_at <= ?
		ORDER BY notify_delivery_next_at ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, entity.NotifyDeliveryPending, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTransactions(rows)
}

func (r *TransactionRepository) UpdateNotifyDelivery(ctx context.Context, id uint64, status, attempts int32, nextAt *time.Time, lastErr *string, now time.Time) error {
	query := `
		UPDATE transactions SET
			notify_delivery_status = ?,
			notify_delivery_attempts = ?,
			notify_delivery_next_at = ?,
			notify_delivery_last_error = ?,
			updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		status,
		attempts,
		nullableTimeValue(nextAt),
		nullableStringValue(lastErr),
		now,
		id,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(scan rowScanner, txn *entity.Transaction) error {
	var gatewayTxnNo sql.NullString
	var listingID sql.NullString
	var status string
	var returnResponseCode sql.NullString
	var returnMessage sql.NullString
	var ipnResponseCode sql.NullString
	var bankCode sql.NullString
	var bankTranNo sql.NullString
	var payDate sql.NullString
	var cardType sql.NullString
	var confirmedVia sql.NullString
	var paymentURL sql.NullString
	var userAgent sql.NullString
	var notifyNextAt sql.NullTime
	var notifyLastErr sql.NullString
	var confirmedAt sql.NullTime
	var failedAt sql.NullTime

	err := scan.Scan(
		&txn.ID,
		&txn.TransactionCode,
		&gatewayTxnNo,
		&txn.UserID,
		&listingID,
		&txn.AmountMinor,
		&txn.Description,
		&status,
		&returnResponseCode,
		&returnMessage,
		&ipnResponseCode,
		&bankCode,
		&bankTranNo,
		&payDate,
		&cardType,
		&confirmedVia,
		&paymentURL,
		&txn.IPAddress,
		&userAgent,
		&txn.RetryCount,
		&txn.NotifyURL,
		&txn.NotifyDeliveryStatus,
		&txn.NotifyDeliveryAttempts,
		&notifyNextAt,
		&notifyLastErr,
		&txn.CreatedAt,
		&txn.UpdatedAt,
		&txn.ExpiresAt,
		&confirmedAt,
		&failedAt,
	)
	if err != nil {
		return err
	}

	txn.Status = entity.TransactionStatus(status)
	txn.GatewayTxnNo = stringPtrFromNull(gatewayTxnNo)
	txn.ListingID = stringPtrFromNull(listingID)
	txn.ReturnResponseCode = stringPtrFromNull(returnResponseCode)
	txn.ReturnMessage = stringPtrFromNull(returnMessage)
	txn.IPNResponseCode = stringPtrFromNull(ipnResponseCode)
	txn.BankCode = stringPtrFromNull(bankCode)
	txn.BankTranNo = stringPtrFromNull(bankTranNo)
	txn.PayDate = stringPtrFromNull(payDate)
	txn.CardType = stringPtrFromNull(cardType)
	txn.ConfirmedVia = stringPtrFromNull(confirmedVia)
	txn.PaymentURL = stringPtrFromNull(paymentURL)
	txn.UserAgent = stringPtrFromNull(userAgent)
	txn.NotifyDeliveryNextAt = timePtrFromNull(notifyNextAt)
	txn.NotifyDeliveryLastErr = stringPtrFromNull(notifyLastErr)
	txn.ConfirmedAt = timePtrFromNull(confirmedAt)
	txn.FailedAt = timePtrFromNull(failedAt)

	return nil
}

func collectTransactions(rows *sql.Rows) ([]*entity.Transaction, error) {
	items := make([]*entity.Transaction, 0)
	for rows.Next() {
		item := &entity.Transaction{}
		if err := scanTransaction(rows, item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
