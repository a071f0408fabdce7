package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/bazaarlink/bazaarbot/internal/models"
	"github.com/bazaarlink/bazaarbot/internal/store"
)

const testPhone = "919876543210"

func newManager(t *testing.T) (*Manager, *store.InMemoryStore) {
	t.Helper()
	st := store.NewInMemoryStore()
	return NewManager(st), st
}

func TestGetCreatesFreshSession(t *testing.T) {
	m, st := newManager(t)
	ctx := context.Background()

	sess, err := m.Get(ctx, testPhone)
	if err != nil {
		t.Fatal(err)
	}
	if sess.CurrentFlow != models.FlowTypeMainMenu || sess.CurrentStep != models.StepNone {
		t.Errorf("fresh session should park at the menu, got %s/%s", sess.CurrentFlow, sess.CurrentStep)
	}
	if len(sess.TempData) != 0 {
		t.Errorf("fresh session has temp data: %v", sess.TempData)
	}

	// The fresh session is persisted, not just returned.
	saved, err := st.GetSession(testPhone)
	if err != nil || saved == nil {
		t.Fatal("fresh session was not persisted")
	}
}

func TestSetStepRequiresActiveFlow(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	sess, err := m.Get(ctx, testPhone)
	if err != nil {
		t.Fatal(err)
	}
	err = m.SetStep(ctx, sess, models.StepRegName)
	if !errors.Is(err, ErrNoActiveFlow) {
		t.Fatalf("expected ErrNoActiveFlow, got %v", err)
	}

	if err := m.SetFlowStep(ctx, sess, models.FlowTypeRegistration, models.StepRegName); err != nil {
		t.Fatal(err)
	}
	if err := m.SetStep(ctx, sess, models.StepRegRole); err != nil {
		t.Fatalf("SetStep inside a flow failed: %v", err)
	}
}

func TestMergeTempDataAccumulates(t *testing.T) {
	m, st := newManager(t)
	ctx := context.Background()

	sess, _ := m.Get(ctx, testPhone)
	if err := m.SetFlowStep(ctx, sess, models.FlowTypeRegistration, models.StepRegName); err != nil {
		t.Fatal(err)
	}
	if err := m.MergeTempData(ctx, sess, map[models.DataKey]string{models.DataKeyName: "Ravi"}); err != nil {
		t.Fatal(err)
	}
	if err := m.MergeTempData(ctx, sess, map[models.DataKey]string{models.DataKeyRole: "customer"}); err != nil {
		t.Fatal(err)
	}

	saved, _ := st.GetSession(testPhone)
	if saved.TempData[models.DataKeyName] != "Ravi" || saved.TempData[models.DataKeyRole] != "customer" {
		t.Errorf("merge lost data: %v", saved.TempData)
	}

	if err := m.RemoveTempData(ctx, sess, models.DataKeyRole); err != nil {
		t.Fatal(err)
	}
	saved, _ = st.GetSession(testPhone)
	if _, ok := saved.TempData[models.DataKeyRole]; ok {
		t.Error("RemoveTempData left the key behind")
	}
}

func TestResetToMainMenu(t *testing.T) {
	m, st := newManager(t)
	ctx := context.Background()

	sess, _ := m.Get(ctx, testPhone)
	if err := m.SetFlowStep(ctx, sess, models.FlowTypeAgreementCreate, models.StepAgreeAmount); err != nil {
		t.Fatal(err)
	}
	if err := m.MergeTempData(ctx, sess, map[models.DataKey]string{models.DataKeyAmount: "500"}); err != nil {
		t.Fatal(err)
	}

	if err := m.ResetToMainMenu(ctx, sess); err != nil {
		t.Fatal(err)
	}
	saved, _ := st.GetSession(testPhone)
	if saved.CurrentFlow != models.FlowTypeMainMenu || saved.CurrentStep != models.StepNone || len(saved.TempData) != 0 {
		t.Errorf("reset left state behind: %s/%s %v", saved.CurrentFlow, saved.CurrentStep, saved.TempData)
	}
}

func TestSeedOverwritesSession(t *testing.T) {
	m, st := newManager(t)
	ctx := context.Background()

	sess, _ := m.Get(ctx, testPhone)
	if err := m.SetFlowStep(ctx, sess, models.FlowTypeProductSearch, models.StepSearchQuantity); err != nil {
		t.Fatal(err)
	}
	if err := m.MergeTempData(ctx, sess, map[models.DataKey]string{models.DataKeyProduct: "rice"}); err != nil {
		t.Fatal(err)
	}

	seeded, err := m.Seed(ctx, testPhone, models.FlowTypeAgreementConfirm, models.StepConfirmAwaiting,
		map[models.DataKey]string{models.DataKeyConfirmAgreementID: "a-1"})
	if err != nil {
		t.Fatal(err)
	}
	if seeded.CurrentFlow != models.FlowTypeAgreementConfirm || seeded.CurrentStep != models.StepConfirmAwaiting {
		t.Fatalf("seed did not switch flow, got %s/%s", seeded.CurrentFlow, seeded.CurrentStep)
	}
	if _, ok := seeded.TempData[models.DataKeyProduct]; ok {
		t.Error("seed merged old temp data instead of replacing it")
	}

	saved, _ := st.GetSession(testPhone)
	if saved.TempData[models.DataKeyConfirmAgreementID] != "a-1" {
		t.Errorf("seeded temp data not persisted: %v", saved.TempData)
	}
}

func TestSeedUnseenPhone(t *testing.T) {
	m, _ := newManager(t)

	seeded, err := m.Seed(context.Background(), testPhone, models.FlowTypeProductRespond, models.StepRespondAwaiting,
		map[models.DataKey]string{models.DataKeyRespondRequestID: "r-1"})
	if err != nil {
		t.Fatal(err)
	}
	if seeded.Phone != testPhone {
		t.Errorf("seeded session has phone %q", seeded.Phone)
	}
}

func TestWithPhoneSerializesSamePhone(t *testing.T) {
	m, st := newManager(t)
	ctx := context.Background()

	sess, _ := m.Get(ctx, testPhone)
	if err := m.SetFlowStep(ctx, sess, models.FlowTypeRegistration, models.StepRegName); err != nil {
		t.Fatal(err)
	}

	// Each goroutine appends one rune to the name under the phone lock. If
	// WithPhone serializes properly every write survives.
	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.WithPhone(testPhone, func() error {
				cur, err := m.Get(ctx, testPhone)
				if err != nil {
					return err
				}
				return m.MergeTempData(ctx, cur, map[models.DataKey]string{
					models.DataKeyName: cur.TempData[models.DataKeyName] + "x",
				})
			})
		}()
	}
	wg.Wait()

	saved, _ := st.GetSession(testPhone)
	if got := len(saved.TempData[models.DataKeyName]); got != workers {
		t.Errorf("lost updates: got %d appends, want %d", got, workers)
	}
}

func TestDeleteRemovesSession(t *testing.T) {
	m, st := newManager(t)
	ctx := context.Background()

	if _, err := m.Get(ctx, testPhone); err != nil {
		t.Fatal(err)
	}
	if err := m.Delete(ctx, testPhone); err != nil {
		t.Fatal(err)
	}
	saved, err := st.GetSession(testPhone)
	if err != nil {
		t.Fatal(err)
	}
	if saved != nil {
		t.Error("session still present after delete")
	}
}
