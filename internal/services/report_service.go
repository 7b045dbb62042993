package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/nckmackenzie/atarah-api/internal/config"
	"github.com/nckmackenzie/atarah-api/internal/ledger"
	"github.com/nckmackenzie/atarah-api/internal/models"
	"github.com/nckmackenzie/atarah-api/internal/utils"
)

// StatementRow is one rendered line of a client statement.
type StatementRow struct {
	Date      time.Time `json:"date"`
	Reference string    `json:"reference"`
	Debit     string    `json:"debit"`
	Credit    string    `json:"credit"`
	Balance   string    `json:"balance"`
}

// ClientStatement is the statement report for one client.
type ClientStatement struct {
	ClientID    string         `json:"clientId"`
	ClientName  string         `json:"clientName"`
	From        *time.Time     `json:"from,omitempty"`
	To          *time.Time     `json:"to,omitempty"`
	Rows        []StatementRow `json:"rows"`
	TotalDebit  string         `json:"totalDebit"`
	TotalCredit string         `json:"totalCredit"`
	Balance     string         `json:"balance"`
}

// OutstandingRow is one row of the outstanding invoices report.
type OutstandingRow struct {
	InvoiceID   string    `json:"invoiceId"`
	InvoiceNo   string    `json:"invoiceNo"`
	ClientName  string    `json:"clientName"`
	InvoiceDate time.Time `json:"invoiceDate"`
	DueDate     time.Time `json:"dueDate"`
	TotalAmount string    `json:"totalAmount"`
	AmountPaid  string    `json:"amountPaid"`
	Balance     string    `json:"balance"`
	Status      string    `json:"status"`
}

// SummaryRow is one grouped total (per account, per client, per method).
type SummaryRow struct {
	Key    string `json:"key"`
	Label  string `json:"label"`
	Amount string `json:"amount"`
}

// Dashboard is the landing-page summary.
type Dashboard struct {
	TotalOutstanding  string `json:"totalOutstanding"`
	OverdueCount      int    `json:"overdueCount"`
	CollectedThisWeek string `json:"collectedThisWeek"`
	ExpensesThisWeek  string `json:"expensesThisWeek"`
	ActiveClients     int    `json:"activeClients"`
	PendingInvoices   int    `json:"pendingInvoices"`
}

// IReportService produces read-only reports over the ledger data.
type IReportService interface {
	ClientStatement(ctx context.Context, clientID utils.SixID, from, to time.Time) (*ClientStatement, error)
	OutstandingInvoices(ctx context.Context) ([]OutstandingRow, error)
	CollectedPayments(ctx context.Context, from, to time.Time) ([]SummaryRow, error)
	ExpenseSummary(ctx context.Context, from, to time.Time) ([]SummaryRow, error)
	IncomeSummary(ctx context.Context, from, to time.Time) ([]SummaryRow, error)
	Dashboard(ctx context.Context) (*Dashboard, error)
}

type reportService struct {
	db             *mongo.Database
	cfg            *config.Config
	rdb            *redis.Client
	clientService  IClientService
	invoiceService IInvoiceService
	paymentService IPaymentService
	expenseService IExpenseService
}

// NewReportService creates a new ReportService. rdb may be nil to disable
// caching.
func NewReportService(database *mongo.Database, cfg *config.Config, rdb *redis.Client,
	clientService IClientService, invoiceService IInvoiceService,
	paymentService IPaymentService, expenseService IExpenseService) IReportService {
	return &reportService{
		db:             database,
		cfg:            cfg,
		rdb:            rdb,
		clientService:  clientService,
		invoiceService: invoiceService,
		paymentService: paymentService,
		expenseService: expenseService,
	}
}

// ClientStatement folds a client's invoices and payments into a
// running-balance statement. Results are cached briefly since the underlying
// query fans out across two collections.
func (s *reportService) ClientStatement(ctx context.Context, clientID utils.SixID, from, to time.Time) (*ClientStatement, error) {
	cacheKey := fmt.Sprintf("report:statement:%s:%d:%d", clientID.String(), from.Unix(), to.Unix())
	if cached := s.fromCache(ctx, cacheKey); cached != nil {
		var statement ClientStatement
		if err := json.Unmarshal(cached, &statement); err == nil {
			return &statement, nil
		}
	}

	client, err := s.clientService.FindByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, NewValidationError("clientId", "invalid_client", "client does not exist")
		}
		return nil, err
	}

	invoices, err := s.invoiceService.List(ctx, InvoiceListFilter{ClientID: clientID, From: from, To: to})
	if err != nil {
		return nil, err
	}
	payments, err := s.paymentService.List(ctx, clientID, from, to)
	if err != nil {
		return nil, err
	}

	transactions := make([]ledger.PostedTransaction, 0, len(invoices)+len(payments))
	for i := range invoices {
		total, parseErr := decimal.NewFromString(invoices[i].TotalAmount)
		if parseErr != nil {
			return nil, fmt.Errorf("invoice %s has malformed total %q", invoices[i].InvoiceNo, invoices[i].TotalAmount)
		}
		transactions = append(transactions, ledger.PostedTransaction{
			Date:      invoices[i].InvoiceDate,
			Reference: invoices[i].InvoiceNo,
			Debit:     total,
			Credit:    decimal.Zero,
		})
	}
	for i := range payments {
		amount, parseErr := decimal.NewFromString(payments[i].Amount)
		if parseErr != nil {
			return nil, fmt.Errorf("payment on invoice %s has malformed amount %q", payments[i].InvoiceNo, payments[i].Amount)
		}
		transactions = append(transactions, ledger.PostedTransaction{
			Date:      payments[i].PaymentDate,
			Reference: fmt.Sprintf("Payment - %s", payments[i].InvoiceNo),
			Debit:     decimal.Zero,
			Credit:    amount,
		})
	}

	entries, totals := ledger.BuildStatement(transactions)
	rows := make([]StatementRow, len(entries))
	for i, entry := range entries {
		rows[i] = StatementRow{
			Date:      entry.Date,
			Reference: entry.Reference,
			Debit:     entry.Debit.String(),
			Credit:    entry.Credit.String(),
			Balance:   entry.RunningBalance.String(),
		}
	}

	statement := &ClientStatement{
		ClientID:    clientID.String(),
		ClientName:  client.Name,
		Rows:        rows,
		TotalDebit:  totals.TotalDebit.String(),
		TotalCredit: totals.TotalCredit.String(),
		Balance:     totals.Balance.String(),
	}
	if !from.IsZero() {
		statement.From = &from
	}
	if !to.IsZero() {
		statement.To = &to
	}

	s.toCache(ctx, cacheKey, statement)
	return statement, nil
}

// OutstandingInvoices lists every invoice with money owed, oldest first.
func (s *reportService) OutstandingInvoices(ctx context.Context) ([]OutstandingRow, error) {
	invoices, err := s.invoiceService.List(ctx, InvoiceListFilter{})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rows := []OutstandingRow{}
	for i := range invoices {
		inv := &invoices[i]
		balance := inv.Balance()
		if balance.Sign() <= 0 {
			continue
		}
		rows = append(rows, OutstandingRow{
			InvoiceID:   inv.ID.String(),
			InvoiceNo:   inv.InvoiceNo,
			ClientName:  inv.ClientName,
			InvoiceDate: inv.InvoiceDate,
			DueDate:     inv.DueDate,
			TotalAmount: inv.TotalAmount,
			AmountPaid:  inv.AmountPaid,
			Balance:     balance.String(),
			Status:      string(inv.Status(now)),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].InvoiceDate.Equal(rows[j].InvoiceDate) {
			return rows[i].InvoiceDate.Before(rows[j].InvoiceDate)
		}
		return rows[i].InvoiceNo < rows[j].InvoiceNo
	})
	return rows, nil
}

// CollectedPayments groups payments in the range by payment method.
func (s *reportService) CollectedPayments(ctx context.Context, from, to time.Time) ([]SummaryRow, error) {
	payments, err := s.paymentService.List(ctx, utils.SixID{}, from, to)
	if err != nil {
		return nil, err
	}

	groups := map[string]decimal.Decimal{}
	for i := range payments {
		amount, parseErr := decimal.NewFromString(payments[i].Amount)
		if parseErr != nil {
			continue
		}
		method := string(payments[i].PaymentMethod)
		groups[method] = groups[method].Add(amount)
	}
	return summaryRows(groups, nil), nil
}

// ExpenseSummary groups expense lines in the range by charged account.
func (s *reportService) ExpenseSummary(ctx context.Context, from, to time.Time) ([]SummaryRow, error) {
	expenses, err := s.expenseService.List(ctx, from, to, nil)
	if err != nil {
		return nil, err
	}

	groups := map[string]decimal.Decimal{}
	labels := map[string]string{}
	for i := range expenses {
		for _, line := range expenses[i].Details {
			amount, parseErr := decimal.NewFromString(line.Amount)
			if parseErr != nil {
				continue
			}
			key := line.AccountID.String()
			groups[key] = groups[key].Add(amount)
			labels[key] = line.AccountName
		}
	}
	return summaryRows(groups, labels), nil
}

// IncomeSummary groups invoiced amounts in the range by client.
func (s *reportService) IncomeSummary(ctx context.Context, from, to time.Time) ([]SummaryRow, error) {
	invoices, err := s.invoiceService.List(ctx, InvoiceListFilter{From: from, To: to})
	if err != nil {
		return nil, err
	}

	groups := map[string]decimal.Decimal{}
	labels := map[string]string{}
	for i := range invoices {
		total, parseErr := decimal.NewFromString(invoices[i].TotalAmount)
		if parseErr != nil {
			continue
		}
		key := invoices[i].ClientID.String()
		groups[key] = groups[key].Add(total)
		labels[key] = invoices[i].ClientName
	}
	return summaryRows(groups, labels), nil
}

// Dashboard assembles the landing-page numbers. Cached briefly; the widgets
// poll it.
func (s *reportService) Dashboard(ctx context.Context) (*Dashboard, error) {
	const cacheKey = "report:dashboard"
	if cached := s.fromCache(ctx, cacheKey); cached != nil {
		var dashboard Dashboard
		if err := json.Unmarshal(cached, &dashboard); err == nil {
			return &dashboard, nil
		}
	}

	invoices, err := s.invoiceService.List(ctx, InvoiceListFilter{})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	weekAgo := now.AddDate(0, 0, -7)

	totalOutstanding := decimal.Zero
	overdueCount := 0
	pendingCount := 0
	for i := range invoices {
		inv := &invoices[i]
		balance := inv.Balance()
		if balance.Sign() <= 0 {
			continue
		}
		totalOutstanding = totalOutstanding.Add(balance)
		switch inv.Status(now) {
		case models.InvoiceStatusOverdue:
			overdueCount++
		case models.InvoiceStatusPending, models.InvoiceStatusPartial:
			pendingCount++
		}
	}

	payments, err := s.paymentService.List(ctx, utils.SixID{}, weekAgo, now)
	if err != nil {
		return nil, err
	}
	collected := decimal.Zero
	for i := range payments {
		if amount, parseErr := decimal.NewFromString(payments[i].Amount); parseErr == nil {
			collected = collected.Add(amount)
		}
	}

	expenses, err := s.expenseService.List(ctx, weekAgo, now, nil)
	if err != nil {
		return nil, err
	}
	spent := decimal.Zero
	for i := range expenses {
		if amount, parseErr := decimal.NewFromString(expenses[i].ExpenseTotal); parseErr == nil {
			spent = spent.Add(amount)
		}
	}

	clients, err := s.clientService.List(ctx, "", true)
	if err != nil {
		return nil, err
	}

	dashboard := &Dashboard{
		TotalOutstanding:  totalOutstanding.String(),
		OverdueCount:      overdueCount,
		CollectedThisWeek: collected.String(),
		ExpensesThisWeek:  spent.String(),
		ActiveClients:     len(clients),
		PendingInvoices:   pendingCount,
	}
	s.toCache(ctx, cacheKey, dashboard)
	return dashboard, nil
}

func (s *reportService) fromCache(ctx context.Context, key string) []byte {
	if s.rdb == nil {
		return nil
	}
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("Report cache read failed for %s: %v", key, err)
		}
		return nil
	}
	return data
}

func (s *reportService) toCache(ctx context.Context, key string, value interface{}) {
	if s.rdb == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, key, data, s.cfg.ReportCacheTTL).Err(); err != nil {
		log.Printf("Report cache write failed for %s: %v", key, err)
	}
}

// summaryRows renders grouped totals sorted by label then key. labels may be
// nil, in which case the key doubles as the label.
func summaryRows(groups map[string]decimal.Decimal, labels map[string]string) []SummaryRow {
	rows := make([]SummaryRow, 0, len(groups))
	for key, amount := range groups {
		label := key
		if labels != nil {
			label = labels[key]
		}
		rows = append(rows, SummaryRow{Key: key, Label: label, Amount: amount.String()})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Label != rows[j].Label {
			return rows[i].Label < rows[j].Label
		}
		return rows[i].Key < rows[j].Key
	})
	return rows
}
