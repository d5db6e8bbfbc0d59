package memory

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"billcal/internal/core"
)

// Store is an in-process data source. It is the default backend and the
// fixture used by service and handler tests.
type Store struct {
	mu        sync.Mutex
	nextID    int64
	profiles  map[int64]core.Profile
	bills     map[int64]core.Bill
	instances map[int64]core.BillInstance
}

func New() *Store {
	return &Store{
		profiles:  map[int64]core.Profile{},
		bills:     map[int64]core.Bill{},
		instances: map[int64]core.BillInstance{},
	}
}

// NewFromFiles seeds a store from seed_profiles.txt, seed_bills.txt and
// seed_instances.txt in base. Lines are pipe separated:
//
//	profiles:  Name|Street|City|CC
//	bills:     Profile name|Bill name
//	instances: Profile name|Bill name|YYYY-MM|YYYY-MM-DD|amount|paid|description
//
// Missing files fall back to a single demo household. Invalid lines are skipped.
func NewFromFiles(base string) *Store {
	s := New()
	ctx := context.Background()

	profiles := readLines(filepath.Join(base, "seed_profiles.txt"))
	bills := readLines(filepath.Join(base, "seed_bills.txt"))
	if len(profiles) == 0 {
		profiles = []string{"Home|Main Street 1|Springfield|US"}
		bills = []string{"Home|Electricity", "Home|Water", "Home|Internet"}
	}

	profileByName := map[string]int64{}
	for _, line := range profiles {
		f := splitFields(line, 4)
		if f == nil {
			continue
		}
		p, err := s.CreateProfile(ctx, core.Profile{Name: f[0], Street: f[1], City: f[2], Country: f[3]})
		if err != nil {
			continue
		}
		profileByName[p.Name] = p.ID
	}

	// Bill names repeat across profiles, so bills are keyed by both.
	billByName := map[string]int64{}
	for _, line := range bills {
		f := splitFields(line, 2)
		if f == nil {
			continue
		}
		pid, ok := profileByName[f[0]]
		if !ok {
			continue
		}
		b, err := s.CreateBill(ctx, core.Bill{ProfileID: pid, Name: f[1]})
		if err != nil {
			continue
		}
		billByName[f[0]+"|"+b.Name] = b.ID
	}

	for _, line := range readLines(filepath.Join(base, "seed_instances.txt")) {
		f := splitFields(line, 7)
		if f == nil {
			continue
		}
		bid, ok := billByName[f[0]+"|"+f[1]]
		if !ok {
			continue
		}
		month, err1 := time.Parse("2006-01", f[2])
		due, err2 := time.Parse("2006-01-02", f[3])
		amount, err3 := core.ParseMoney(f[4])
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}
		_, _ = s.CreateBillInstance(ctx, core.BillInstance{
			BillID:      bid,
			Month:       core.DateOf(month),
			DueDate:     core.DateOf(due),
			Amount:      amount,
			Paid:        f[5] == "paid" || f[5] == "true",
			Description: f[6],
		})
	}
	return s
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) GetProfile(_ context.Context, id int64) (core.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return core.Profile{}, core.NotFound("profile", id)
	}
	return p, nil
}

// ListProfiles returns profiles ordered by name.
func (s *Store) ListProfiles(_ context.Context) ([]core.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) CreateProfile(_ context.Context, p core.Profile) (core.Profile, error) {
	if err := p.Validate(); err != nil {
		return core.Profile{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.id()
	s.profiles[p.ID] = p
	return p, nil
}

func (s *Store) UpdateProfile(_ context.Context, p core.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[p.ID]; !ok {
		return core.NotFound("profile", p.ID)
	}
	s.profiles[p.ID] = p
	return nil
}

func (s *Store) DeleteProfile(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[id]; !ok {
		return core.NotFound("profile", id)
	}
	for bid, b := range s.bills {
		if b.ProfileID == id {
			s.deleteBillLocked(bid)
		}
	}
	delete(s.profiles, id)
	return nil
}

func (s *Store) GetBill(_ context.Context, id int64) (core.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bills[id]
	if !ok {
		return core.Bill{}, core.NotFound("bill", id)
	}
	return b, nil
}

// ListBills returns the bills of one profile ordered by name.
func (s *Store) ListBills(_ context.Context, profileID int64) ([]core.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Bill
	for _, b := range s.bills {
		if b.ProfileID == profileID {
			out = append(out, b)
		}
	}
	sortBills(out)
	return out, nil
}

func (s *Store) ListAllBills(_ context.Context) ([]core.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Bill, 0, len(s.bills))
	for _, b := range s.bills {
		out = append(out, b)
	}
	sortBills(out)
	return out, nil
}

func (s *Store) CreateBill(_ context.Context, b core.Bill) (core.Bill, error) {
	if err := b.Validate(); err != nil {
		return core.Bill{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[b.ProfileID]; !ok {
		return core.Bill{}, core.NotFound("profile", b.ProfileID)
	}
	b.ID = s.id()
	s.bills[b.ID] = b
	return b, nil
}

func (s *Store) DeleteBill(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bills[id]; !ok {
		return core.NotFound("bill", id)
	}
	s.deleteBillLocked(id)
	return nil
}

func (s *Store) deleteBillLocked(id int64) {
	for iid, bi := range s.instances {
		if bi.BillID == id {
			delete(s.instances, iid)
		}
	}
	delete(s.bills, id)
}

func (s *Store) GetBillInstance(_ context.Context, id int64) (core.BillInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bi, ok := s.instances[id]
	if !ok {
		return core.BillInstance{}, core.NotFound("bill instance", id)
	}
	return bi, nil
}

func (s *Store) ListInstances(_ context.Context, month core.Date) ([]core.BillInstance, error) {
	first := month.FirstOfMonth()
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.BillInstance
	for _, bi := range s.instances {
		if bi.Month.SameDay(first) {
			out = append(out, bi)
		}
	}
	sortInstances(out)
	return out, nil
}

func (s *Store) ListInstancesDue(_ context.Context, from, to core.Date) ([]core.BillInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.BillInstance
	for _, bi := range s.instances {
		if bi.DueDate.Before(from.Time) || bi.DueDate.After(to.Time) {
			continue
		}
		out = append(out, bi)
	}
	sortInstances(out)
	return out, nil
}

func (s *Store) ListInstancesByBill(_ context.Context, billID int64) ([]core.BillInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.BillInstance
	for _, bi := range s.instances {
		if bi.BillID == billID {
			out = append(out, bi)
		}
	}
	sortInstances(out)
	return out, nil
}

func (s *Store) CreateBillInstance(_ context.Context, bi core.BillInstance) (core.BillInstance, error) {
	if err := bi.Validate(); err != nil {
		return core.BillInstance{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bills[bi.BillID]; !ok {
		return core.BillInstance{}, core.NotFound("bill", bi.BillID)
	}
	bi.ID = s.id()
	s.instances[bi.ID] = bi
	return bi, nil
}

func (s *Store) UpdateBillInstance(_ context.Context, bi core.BillInstance) error {
	if err := bi.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.instances[bi.ID]; !ok {
		return core.NotFound("bill instance", bi.ID)
	}
	if _, ok := s.bills[bi.BillID]; !ok {
		return core.NotFound("bill", bi.BillID)
	}
	s.instances[bi.ID] = bi
	return nil
}

func (s *Store) SetInstancePaid(_ context.Context, id int64, paid bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bi, ok := s.instances[id]
	if !ok {
		return core.NotFound("bill instance", id)
	}
	bi.Paid = paid
	s.instances[id] = bi
	return nil
}

func (s *Store) DeleteBillInstance(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.instances[id]; !ok {
		return core.NotFound("bill instance", id)
	}
	delete(s.instances, id)
	return nil
}

func sortBills(out []core.Bill) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
}

func sortInstances(out []core.BillInstance) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate.Time) {
			return out[i].DueDate.Before(out[j].DueDate.Time)
		}
		return out[i].ID < out[j].ID
	})
}

func splitFields(line string, n int) []string {
	parts := strings.Split(line, "|")
	if len(parts) != n {
		return nil
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
