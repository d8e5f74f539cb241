package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/evertweb/programajava-sub002/internal/application/inventory"
	"github.com/evertweb/programajava-sub002/internal/domain"
	"github.com/evertweb/programajava-sub002/internal/domain/entity"
	"github.com/evertweb/programajava-sub002/internal/domain/repository"
)

var (
	_ inventory.TxRunner                  = (*LedgerStore)(nil)
	_ repository.MovementRepository       = (*movementRepo)(nil)
	_ repository.FifoAllocationRepository = (*allocationRepo)(nil)
	_ repository.MovementRepository       = (*lockedMovementRepo)(nil)
)

// LedgerStore libro de movimientos en memoria. Cada Run trabaja sobre una copia del estado
// y solo la publica si fn no devuelve error (rollback implícito). Las transacciones se
// serializan con un único mutex.
type LedgerStore struct {
	mu    sync.Mutex
	state *ledgerState
	seq   int64
}

type ledgerState struct {
	movements   map[string]entity.Movement
	allocations map[string]entity.FifoAllocation
}

// NewLedgerStore crea un libro vacío.
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{state: &ledgerState{
		movements:   make(map[string]entity.Movement),
		allocations: make(map[string]entity.FifoAllocation),
	}}
}

func (s *ledgerState) clone() *ledgerState {
	c := &ledgerState{
		movements:   make(map[string]entity.Movement, len(s.movements)),
		allocations: make(map[string]entity.FifoAllocation, len(s.allocations)),
	}
	for k, v := range s.movements {
		c.movements[k] = v
	}
	for k, v := range s.allocations {
		c.allocations[k] = v
	}
	return c
}

// Run ejecuta fn con repositorios atados a una copia del estado; commit si fn no falla.
func (s *LedgerStore) Run(ctx context.Context, fn func(
	movRepo repository.MovementRepository,
	allocRepo repository.FifoAllocationRepository,
) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.state.clone()
	if err := fn(&movementRepo{st: work, store: s}, &allocationRepo{st: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

// Movements devuelve un repositorio de lectura/escritura fuera de transacción.
func (s *LedgerStore) Movements() repository.MovementRepository {
	return &lockedMovementRepo{store: s}
}

// Allocations devuelve las asignaciones registradas de una salida (inspección en tests).
func (s *LedgerStore) Allocations(exitID string) []*entity.FifoAllocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, _ := (&allocationRepo{st: s.state}).ListByExit(context.Background(), exitID)
	return list
}

func (s *LedgerStore) nextSeq() int64 {
	s.seq++
	return s.seq
}

// ── movimientos ────────────────────────────────────────────────────────────────

type movementRepo struct {
	st    *ledgerState
	store *LedgerStore
}

func (r *movementRepo) LockProduct(context.Context, string) error { return nil }

func (r *movementRepo) Create(_ context.Context, m *entity.Movement) error {
	if _, exists := r.st.movements[m.ID]; exists {
		return domain.ErrConflict
	}
	m.Seq = r.store.nextSeq()
	r.st.movements[m.ID] = *m
	return nil
}

func (r *movementRepo) GetByID(_ context.Context, id string) (*entity.Movement, error) {
	m, ok := r.st.movements[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

// Delete respeta las mismas llaves foráneas que postgres: una ENTRADA referenciada por
// asignaciones no se elimina y las asignaciones de una SALIDA caen en cascada.
func (r *movementRepo) Delete(_ context.Context, id string) error {
	for _, a := range r.st.allocations {
		if a.EntryID == id {
			return fmt.Errorf("%w: movimiento %s referenciado por asignaciones FIFO", domain.ErrIntegrity, id)
		}
	}
	for allocID, a := range r.st.allocations {
		if a.ExitID == id {
			delete(r.st.allocations, allocID)
		}
	}
	delete(r.st.movements, id)
	return nil
}

func (r *movementRepo) UpdateRemaining(_ context.Context, id string, remaining decimal.Decimal) error {
	m, ok := r.st.movements[id]
	if !ok {
		return domain.ErrNotFound
	}
	m.RemainingQuantity = remaining
	r.st.movements[id] = m
	return nil
}

func (r *movementRepo) filter(keep func(m *entity.Movement) bool) []*entity.Movement {
	var list []*entity.Movement
	for _, m := range r.st.movements {
		m := m
		if keep(&m) {
			list = append(list, &m)
		}
	}
	return list
}

func (r *movementRepo) ListAvailableEntries(_ context.Context, productID string) ([]*entity.Movement, error) {
	list := r.filter(func(m *entity.Movement) bool {
		return m.ProductID == productID && m.IsEntrada() && m.RemainingQuantity.GreaterThan(decimal.Zero)
	})
	sortBySeq(list, true)
	return list, nil
}

func (r *movementRepo) ListEntriesNewestFirst(_ context.Context, productID string) ([]*entity.Movement, error) {
	list := r.filter(func(m *entity.Movement) bool {
		return m.ProductID == productID && m.IsEntrada()
	})
	sortBySeq(list, false)
	return list, nil
}

func (r *movementRepo) SumQuantities(_ context.Context, productID string) (decimal.Decimal, decimal.Decimal, error) {
	entradas, salidas := decimal.Zero, decimal.Zero
	for _, m := range r.st.movements {
		if m.ProductID != productID {
			continue
		}
		if m.IsEntrada() {
			entradas = entradas.Add(m.Quantity)
		} else if m.IsSalida() {
			salidas = salidas.Add(m.Quantity)
		}
	}
	return entradas, salidas, nil
}

func (r *movementRepo) ListByProduct(_ context.Context, productID string, limit, offset int) ([]*entity.Movement, error) {
	list := r.filter(func(m *entity.Movement) bool { return m.ProductID == productID })
	sortBySeq(list, false)
	return paginate(list, limit, offset), nil
}

func (r *movementRepo) ListByInvoice(_ context.Context, invoiceID string) ([]*entity.Movement, error) {
	list := r.filter(func(m *entity.Movement) bool { return invoiceID != "" && m.InvoiceID == invoiceID })
	sortBySeq(list, true)
	return list, nil
}

// sortBySeq ordena por CreatedAt y Seq; asc = más antiguo primero.
func sortBySeq(list []*entity.Movement, asc bool) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if asc {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.CreatedAt.After(b.CreatedAt)
		}
		if asc {
			return a.Seq < b.Seq
		}
		return a.Seq > b.Seq
	})
}

func paginate(list []*entity.Movement, limit, offset int) []*entity.Movement {
	if offset >= len(list) {
		return []*entity.Movement{}
	}
	list = list[offset:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list
}

// lockedMovementRepo ejecuta cada operación como una transacción implícita.
type lockedMovementRepo struct {
	store *LedgerStore
}

func (r *lockedMovementRepo) with(fn func(repo *movementRepo) error) error {
	return r.store.Run(context.Background(), func(movRepo repository.MovementRepository, _ repository.FifoAllocationRepository) error {
		return fn(movRepo.(*movementRepo))
	})
}

func (r *lockedMovementRepo) LockProduct(context.Context, string) error { return nil }

func (r *lockedMovementRepo) Create(ctx context.Context, m *entity.Movement) error {
	return r.with(func(repo *movementRepo) error { return repo.Create(ctx, m) })
}

func (r *lockedMovementRepo) GetByID(ctx context.Context, id string) (m *entity.Movement, err error) {
	err = r.with(func(repo *movementRepo) error { m, err = repo.GetByID(ctx, id); return err })
	return m, err
}

func (r *lockedMovementRepo) Delete(ctx context.Context, id string) error {
	return r.with(func(repo *movementRepo) error { return repo.Delete(ctx, id) })
}

func (r *lockedMovementRepo) UpdateRemaining(ctx context.Context, id string, remaining decimal.Decimal) error {
	return r.with(func(repo *movementRepo) error { return repo.UpdateRemaining(ctx, id, remaining) })
}

func (r *lockedMovementRepo) ListAvailableEntries(ctx context.Context, productID string) (list []*entity.Movement, err error) {
	err = r.with(func(repo *movementRepo) error { list, err = repo.ListAvailableEntries(ctx, productID); return err })
	return list, err
}

func (r *lockedMovementRepo) ListEntriesNewestFirst(ctx context.Context, productID string) (list []*entity.Movement, err error) {
	err = r.with(func(repo *movementRepo) error { list, err = repo.ListEntriesNewestFirst(ctx, productID); return err })
	return list, err
}

func (r *lockedMovementRepo) SumQuantities(ctx context.Context, productID string) (entradas, salidas decimal.Decimal, err error) {
	err = r.with(func(repo *movementRepo) error {
		entradas, salidas, err = repo.SumQuantities(ctx, productID)
		return err
	})
	return entradas, salidas, err
}

func (r *lockedMovementRepo) ListByProduct(ctx context.Context, productID string, limit, offset int) (list []*entity.Movement, err error) {
	err = r.with(func(repo *movementRepo) error { list, err = repo.ListByProduct(ctx, productID, limit, offset); return err })
	return list, err
}

func (r *lockedMovementRepo) ListByInvoice(ctx context.Context, invoiceID string) (list []*entity.Movement, err error) {
	err = r.with(func(repo *movementRepo) error { list, err = repo.ListByInvoice(ctx, invoiceID); return err })
	return list, err
}

// ── asignaciones FIFO ──────────────────────────────────────────────────────────

type allocationRepo struct {
	st *ledgerState
}

func (r *allocationRepo) Create(_ context.Context, a *entity.FifoAllocation) error {
	if _, ok := r.st.movements[a.ExitID]; !ok {
		return domain.ErrIntegrity
	}
	r.st.allocations[a.ID] = *a
	return nil
}

func (r *allocationRepo) ListByExit(_ context.Context, exitID string) ([]*entity.FifoAllocation, error) {
	var list []*entity.FifoAllocation
	for _, a := range r.st.allocations {
		a := a
		if a.ExitID == exitID {
			list = append(list, &a)
		}
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list, nil
}

func (r *allocationRepo) ExistsForEntry(_ context.Context, entryID string) (bool, error) {
	for _, a := range r.st.allocations {
		if a.EntryID == entryID {
			return true, nil
		}
	}
	return false, nil
}

func (r *allocationRepo) DeleteByExit(_ context.Context, exitID string) error {
	for id, a := range r.st.allocations {
		if a.ExitID == exitID {
			delete(r.st.allocations, id)
		}
	}
	return nil
}
