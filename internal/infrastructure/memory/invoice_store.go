package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/evertweb/programajava-sub002/internal/application/billing"
	"github.com/evertweb/programajava-sub002/internal/domain"
	"github.com/evertweb/programajava-sub002/internal/domain/entity"
	"github.com/evertweb/programajava-sub002/internal/domain/repository"
)

var (
	_ billing.BillingTxRunner      = (*InvoiceStore)(nil)
	_ repository.InvoiceRepository = (*invoiceRepo)(nil)
)

// InvoiceStore base de facturación en memoria con la misma semántica transaccional que LedgerStore.
type InvoiceStore struct {
	mu    sync.Mutex
	state *invoiceState
}

type invoiceState struct {
	invoices map[string]entity.Invoice
	details  map[string]entity.InvoiceDetail
}

// NewInvoiceStore crea una base de facturación vacía.
func NewInvoiceStore() *InvoiceStore {
	return &InvoiceStore{state: &invoiceState{
		invoices: make(map[string]entity.Invoice),
		details:  make(map[string]entity.InvoiceDetail),
	}}
}

func (s *invoiceState) clone() *invoiceState {
	c := &invoiceState{
		invoices: make(map[string]entity.Invoice, len(s.invoices)),
		details:  make(map[string]entity.InvoiceDetail, len(s.details)),
	}
	for k, v := range s.invoices {
		c.invoices[k] = v
	}
	for k, v := range s.details {
		c.details[k] = v
	}
	return c
}

// RunBilling ejecuta fn sobre una copia del estado; commit si fn no falla.
func (s *InvoiceStore) RunBilling(ctx context.Context, fn func(invoiceRepo repository.InvoiceRepository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.state.clone()
	if err := fn(&invoiceRepo{st: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

// Invoices devuelve un repositorio en el que cada operación es una transacción implícita.
func (s *InvoiceStore) Invoices() repository.InvoiceRepository {
	return &lockedInvoiceRepo{store: s}
}

// Count devuelve el número de facturas almacenadas.
func (s *InvoiceStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.invoices)
}

type invoiceRepo struct {
	st *invoiceState
}

func (r *invoiceRepo) Create(_ context.Context, inv *entity.Invoice) error {
	if _, ok := r.st.invoices[inv.ID]; ok {
		return domain.ErrConflict
	}
	for _, other := range r.st.invoices {
		if inv.Number != "" && other.Number == inv.Number && other.SupplierID == inv.SupplierID {
			return domain.ErrConflict
		}
	}
	r.st.invoices[inv.ID] = *inv
	return nil
}

func (r *invoiceRepo) CreateDetail(_ context.Context, d *entity.InvoiceDetail) error {
	if _, ok := r.st.invoices[d.InvoiceID]; !ok {
		return domain.ErrIntegrity
	}
	r.st.details[d.ID] = *d
	return nil
}

func (r *invoiceRepo) LinkMovement(_ context.Context, detailID, movementID string) error {
	d, ok := r.st.details[detailID]
	if !ok {
		return domain.ErrNotFound
	}
	d.MovementID = movementID
	r.st.details[detailID] = d
	return nil
}

func (r *invoiceRepo) UpdateStatus(_ context.Context, id, status string, updatedAt time.Time) error {
	inv, ok := r.st.invoices[id]
	if !ok {
		return domain.ErrNotFound
	}
	inv.Status = status
	inv.UpdatedAt = updatedAt
	r.st.invoices[id] = inv
	return nil
}

func (r *invoiceRepo) GetByID(_ context.Context, id string) (*entity.Invoice, error) {
	inv, ok := r.st.invoices[id]
	if !ok {
		return nil, nil
	}
	return &inv, nil
}

func (r *invoiceRepo) GetDetailsByInvoiceID(_ context.Context, invoiceID string) ([]*entity.InvoiceDetail, error) {
	var list []*entity.InvoiceDetail
	for _, d := range r.st.details {
		d := d
		if d.InvoiceID == invoiceID {
			list = append(list, &d)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].LineNumber < list[j].LineNumber })
	return list, nil
}

func (r *invoiceRepo) Delete(_ context.Context, id string) error {
	for detailID, d := range r.st.details {
		if d.InvoiceID == id {
			delete(r.st.details, detailID)
		}
	}
	delete(r.st.invoices, id)
	return nil
}

type lockedInvoiceRepo struct {
	store *InvoiceStore
}

func (r *lockedInvoiceRepo) with(ctx context.Context, fn func(repo repository.InvoiceRepository) error) error {
	return r.store.RunBilling(ctx, fn)
}

func (r *lockedInvoiceRepo) Create(ctx context.Context, inv *entity.Invoice) error {
	return r.with(ctx, func(repo repository.InvoiceRepository) error { return repo.Create(ctx, inv) })
}

func (r *lockedInvoiceRepo) CreateDetail(ctx context.Context, d *entity.InvoiceDetail) error {
	return r.with(ctx, func(repo repository.InvoiceRepository) error { return repo.CreateDetail(ctx, d) })
}

func (r *lockedInvoiceRepo) LinkMovement(ctx context.Context, detailID, movementID string) error {
	return r.with(ctx, func(repo repository.InvoiceRepository) error { return repo.LinkMovement(ctx, detailID, movementID) })
}

func (r *lockedInvoiceRepo) UpdateStatus(ctx context.Context, id, status string, updatedAt time.Time) error {
	return r.with(ctx, func(repo repository.InvoiceRepository) error { return repo.UpdateStatus(ctx, id, status, updatedAt) })
}

func (r *lockedInvoiceRepo) GetByID(ctx context.Context, id string) (inv *entity.Invoice, err error) {
	err = r.with(ctx, func(repo repository.InvoiceRepository) error { inv, err = repo.GetByID(ctx, id); return err })
	return inv, err
}

func (r *lockedInvoiceRepo) GetDetailsByInvoiceID(ctx context.Context, invoiceID string) (list []*entity.InvoiceDetail, err error) {
	err = r.with(ctx, func(repo repository.InvoiceRepository) error {
		list, err = repo.GetDetailsByInvoiceID(ctx, invoiceID)
		return err
	})
	return list, err
}

func (r *lockedInvoiceRepo) Delete(ctx context.Context, id string) error {
	return r.with(ctx, func(repo repository.InvoiceRepository) error { return repo.Delete(ctx, id) })
}
