package inventory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/evertweb/programajava-sub002/internal/application/inventory"
	"github.com/evertweb/programajava-sub002/internal/domain/entity"
	"github.com/evertweb/programajava-sub002/internal/infrastructure/memory"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func price(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

// fakeCatalog catálogo en memoria.
type fakeCatalog struct {
	products map[string]*entity.Product
}

func (f *fakeCatalog) GetProductByID(_ context.Context, id string) (*entity.Product, error) {
	return f.products[id], nil
}

// fakeFleet flota en memoria.
type fakeFleet struct {
	vehicles map[string]*entity.Vehicle
}

func (f *fakeFleet) GetVehicleByID(_ context.Context, id string) (*entity.Vehicle, error) {
	return f.vehicles[id], nil
}

// stepClock devuelve instantes crecientes de un minuto.
type stepClock struct {
	mu  sync.Mutex
	cur time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Minute)
	return c.cur
}

type fixture struct {
	store *memory.LedgerStore
	uc    *inventory.MovementUseCase
}

// newFixture libro vacío con los productos FUE-1/ACE-1 y el vehículo VH-1.
func newFixture(t *testing.T, strategy string) *fixture {
	t.Helper()
	store := memory.NewLedgerStore()
	catalog := &fakeCatalog{products: map[string]*entity.Product{
		"FUE-1": {ID: "FUE-1", Name: "Diésel", UnitPrice: d("5"), Unit: "galón"},
		"ACE-1": {ID: "ACE-1", Name: "Aceite 15W40", UnitPrice: d("20"), Unit: "litro"},
	}}
	fleet := &fakeFleet{vehicles: map[string]*entity.Vehicle{
		"VH-1": {ID: "VH-1", Plate: "P-123ABC"},
	}}
	clock := &stepClock{cur: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
	uc := inventory.NewMovementUseCase(store, store.Movements(), catalog, fleet, inventory.Options{
		RestoreStrategy: strategy,
		Clock:           clock.Now,
	})
	return &fixture{store: store, uc: uc}
}

func (f *fixture) entrada(t *testing.T, productID, qty, unitPrice string) *entity.Movement {
	t.Helper()
	m, err := f.uc.CreateEntrada(context.Background(), "", productID, "", d(qty), d(unitPrice))
	if err != nil {
		t.Fatalf("crear entrada: %v", err)
	}
	return m
}

func (f *fixture) salida(t *testing.T, productID, qty string) *entity.Movement {
	t.Helper()
	m, err := f.uc.CreateSalida(context.Background(), productID, "VH-1", d(qty))
	if err != nil {
		t.Fatalf("crear salida: %v", err)
	}
	return m
}

func (f *fixture) remaining(t *testing.T, id string) decimal.Decimal {
	t.Helper()
	m, err := f.uc.GetMovement(context.Background(), id)
	if err != nil {
		t.Fatalf("leer movimiento %s: %v", id, err)
	}
	return m.RemainingQuantity
}
