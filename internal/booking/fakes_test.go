package booking

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/labubou/TAConnect-sub000/internal/model"
)

// In-memory repository fakes backing the service tests. They mirror the
// transactional guarantees of the pgx implementations: guarded status
// updates and an overlap check atomic with the write.

type fakeDefRepo struct {
	byID   map[int64]*model.SlotDefinition
	nextID int64
}

func newFakeDefRepo() *fakeDefRepo {
	return &fakeDefRepo{byID: make(map[int64]*model.SlotDefinition)}
}

func (f *fakeDefRepo) Create(_ context.Context, def *model.SlotDefinition) error {
	f.nextID++
	def.ID = f.nextID
	f.byID[def.ID] = cloneDef(def)
	return nil
}

func (f *fakeDefRepo) GetByID(_ context.Context, id int64) (*model.SlotDefinition, error) {
	def, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	return cloneDef(def), nil
}

func (f *fakeDefRepo) GetByInstructorID(_ context.Context, instructorID int64) ([]*model.SlotDefinition, error) {
	var out []*model.SlotDefinition
	for _, def := range f.byID {
		if def.InstructorID == instructorID {
			out = append(out, cloneDef(def))
		}
	}
	return out, nil
}

func (f *fakeDefRepo) Update(_ context.Context, def *model.SlotDefinition) error {
	if _, ok := f.byID[def.ID]; !ok {
		return fmt.Errorf("slot definition not found")
	}
	f.byID[def.ID] = cloneDef(def)
	return nil
}

func (f *fakeDefRepo) SetActive(_ context.Context, id int64, active bool) error {
	def, ok := f.byID[id]
	if !ok {
		return fmt.Errorf("slot definition not found")
	}
	def.IsActive = active
	return nil
}

func (f *fakeDefRepo) Delete(_ context.Context, id int64) error {
	if _, ok := f.byID[id]; !ok {
		return fmt.Errorf("slot definition not found")
	}
	delete(f.byID, id)
	return nil
}

type fakePolicyRepo struct {
	bySlot map[int64]*model.Policy
	nextID int64
}

func newFakePolicyRepo() *fakePolicyRepo {
	return &fakePolicyRepo{bySlot: make(map[int64]*model.Policy)}
}

func (f *fakePolicyRepo) Create(_ context.Context, policy *model.Policy) error {
	f.nextID++
	policy.ID = f.nextID
	cp := *policy
	f.bySlot[policy.SlotDefinitionID] = &cp
	return nil
}

func (f *fakePolicyRepo) GetBySlotDefinitionID(_ context.Context, slotDefinitionID int64) (*model.Policy, error) {
	policy, ok := f.bySlot[slotDefinitionID]
	if !ok {
		return nil, nil
	}
	cp := *policy
	return &cp, nil
}

func (f *fakePolicyRepo) Update(_ context.Context, policy *model.Policy) error {
	existing, ok := f.bySlot[policy.SlotDefinitionID]
	if !ok {
		return fmt.Errorf("policy not found")
	}
	policy.ID = existing.ID
	cp := *policy
	f.bySlot[policy.SlotDefinitionID] = &cp
	return nil
}

type fakeAllowRepo struct {
	byPolicy map[int64][]*model.AllowedStudent
}

func newFakeAllowRepo() *fakeAllowRepo {
	return &fakeAllowRepo{byPolicy: make(map[int64][]*model.AllowedStudent)}
}

func (f *fakeAllowRepo) add(policyID int64, email string) {
	f.byPolicy[policyID] = append(f.byPolicy[policyID], &model.AllowedStudent{
		PolicyID: policyID,
		Email:    email,
	})
}

func (f *fakeAllowRepo) ExistsByEmail(_ context.Context, policyID int64, email string) (bool, error) {
	for _, s := range f.byPolicy[policyID] {
		if strings.EqualFold(s.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAllowRepo) ListByPolicyID(_ context.Context, policyID int64) ([]*model.AllowedStudent, error) {
	return f.byPolicy[policyID], nil
}

type fakeReservationRepo struct {
	byID   map[int64]*model.Reservation
	nextID int64

	// beforeCancelBatch, when set, runs at the top of CancelBatch to
	// simulate rows changing between the caller's listing and the batch
	// statement.
	beforeCancelBatch func()
}

func newFakeReservationRepo() *fakeReservationRepo {
	return &fakeReservationRepo{byID: make(map[int64]*model.Reservation)}
}

func (f *fakeReservationRepo) GetByID(_ context.Context, id int64) (*model.Reservation, error) {
	res, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	return cloneReservation(res), nil
}

func (f *fakeReservationRepo) ListActiveByDate(_ context.Context, slotDefinitionID int64, date time.Time) ([]*model.Reservation, error) {
	var out []*model.Reservation
	for _, r := range f.byID {
		if r.SlotDefinitionID == slotDefinitionID && sameDate(r.Date, date) && r.Status != model.ReservationStatusCancelled {
			out = append(out, cloneReservation(r))
		}
	}
	sortByStart(out)
	return out, nil
}

func (f *fakeReservationRepo) ListActiveBySlot(_ context.Context, slotDefinitionID int64) ([]*model.Reservation, error) {
	var out []*model.Reservation
	for _, r := range f.byID {
		if r.SlotDefinitionID == slotDefinitionID && r.IsActive() {
			out = append(out, cloneReservation(r))
		}
	}
	sortByStart(out)
	return out, nil
}

func (f *fakeReservationRepo) ListByStudentID(_ context.Context, studentID int64) ([]*model.Reservation, error) {
	var out []*model.Reservation
	for _, r := range f.byID {
		if r.StudentID == studentID {
			out = append(out, cloneReservation(r))
		}
	}
	sortByStart(out)
	return out, nil
}

func (f *fakeReservationRepo) CountActiveByStudent(_ context.Context, slotDefinitionID, studentID int64) (int, error) {
	count := 0
	for _, r := range f.byID {
		if r.SlotDefinitionID == slotDefinitionID && r.StudentID == studentID && r.IsActive() {
			count++
		}
	}
	return count, nil
}

func (f *fakeReservationRepo) ListElapsedActive(_ context.Context, now time.Time) ([]*model.Reservation, error) {
	var out []*model.Reservation
	for _, r := range f.byID {
		if r.IsActive() && r.Elapsed(now) {
			out = append(out, cloneReservation(r))
		}
	}
	sortByStart(out)
	return out, nil
}

func (f *fakeReservationRepo) CreateIfAvailable(_ context.Context, res *model.Reservation) error {
	if id := f.overlapping(res, 0); id != 0 {
		return fmt.Errorf("reservation %d occupies the window: %w", id, ErrTimeConflict)
	}
	f.nextID++
	res.ID = f.nextID
	f.byID[res.ID] = cloneReservation(res)
	return nil
}

func (f *fakeReservationRepo) RescheduleIfAvailable(_ context.Context, res *model.Reservation) error {
	stored, ok := f.byID[res.ID]
	if !ok || !stored.IsActive() {
		return fmt.Errorf("reservation %d no longer active: %w", res.ID, ErrInvalidTransition)
	}
	if id := f.overlapping(res, res.ID); id != 0 {
		return fmt.Errorf("reservation %d occupies the window: %w", id, ErrTimeConflict)
	}
	stored.Date = res.Date
	stored.StartsAt = res.StartsAt
	stored.EndsAt = res.EndsAt
	return nil
}

func (f *fakeReservationRepo) UpdateStatus(_ context.Context, id int64, from, to model.ReservationStatus) error {
	stored, ok := f.byID[id]
	if !ok || stored.Status != from {
		return fmt.Errorf("reservation %d not in state %s: %w", id, from, ErrInvalidTransition)
	}
	stored.Status = to
	return nil
}

func (f *fakeReservationRepo) Cancel(_ context.Context, id int64, reason model.CancelReason) error {
	stored, ok := f.byID[id]
	if !ok || !stored.IsActive() {
		return fmt.Errorf("reservation %d not active: %w", id, ErrInvalidTransition)
	}
	stored.Status = model.ReservationStatusCancelled
	stored.CancelReason = reason
	stored.CalendarEventID = nil
	return nil
}

func (f *fakeReservationRepo) CancelBatch(_ context.Context, ids []int64, reason model.CancelReason) ([]int64, error) {
	if f.beforeCancelBatch != nil {
		f.beforeCancelBatch()
	}
	var cancelled []int64
	for _, id := range ids {
		stored, ok := f.byID[id]
		if !ok || !stored.IsActive() {
			continue
		}
		stored.Status = model.ReservationStatusCancelled
		stored.CancelReason = reason
		stored.CalendarEventID = nil
		cancelled = append(cancelled, id)
	}
	return cancelled, nil
}

func (f *fakeReservationRepo) SetCalendarEvent(_ context.Context, id int64, eventID string) error {
	stored, ok := f.byID[id]
	if !ok {
		return fmt.Errorf("reservation %d: %w", id, ErrNotFound)
	}
	stored.CalendarEventID = &eventID
	return nil
}

func (f *fakeReservationRepo) overlapping(res *model.Reservation, excludeID int64) int64 {
	for _, r := range f.byID {
		if r.ID == excludeID || r.SlotDefinitionID != res.SlotDefinitionID || !r.IsActive() {
			continue
		}
		if r.StartsAt.Before(res.EndsAt) && r.EndsAt.After(res.StartsAt) {
			return r.ID
		}
	}
	return 0
}

// recordingNotifier captures dispatched events; failErr simulates a broken
// downstream dispatcher.
type recordingNotifier struct {
	events  []Event
	failErr error
}

func (n *recordingNotifier) Dispatch(_ context.Context, ev Event) error {
	n.events = append(n.events, ev)
	return n.failErr
}

func cloneDef(def *model.SlotDefinition) *model.SlotDefinition {
	cp := *def
	return &cp
}

func cloneReservation(r *model.Reservation) *model.Reservation {
	cp := *r
	if r.CalendarEventID != nil {
		v := *r.CalendarEventID
		cp.CalendarEventID = &v
	}
	return &cp
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func sortByStart(rs []*model.Reservation) {
	sort.Slice(rs, func(i, j int) bool { return rs[i].StartsAt.Before(rs[j].StartsAt) })
}

var (
	_ SlotDefinitionRepository = (*fakeDefRepo)(nil)
	_ PolicyRepository         = (*fakePolicyRepo)(nil)
	_ AllowedStudentRepository = (*fakeAllowRepo)(nil)
	_ ReservationRepository    = (*fakeReservationRepo)(nil)
)
