package payment_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-payments/internal/logger"
	"ms-payments/internal/models"
	"ms-payments/internal/notifier"
	"ms-payments/internal/payment"
)

// Mock implementations

type MockPaymentStore struct {
	mock.Mock
}

func (m *MockPaymentStore) CreatePayment(p models.Payment) error {
	args := m.Called(p)
	return args.Error(0)
}

func (m *MockPaymentStore) GetPaymentByID(id string) (*models.Payment, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *MockPaymentStore) UpdatePayment(p models.Payment) error {
	args := m.Called(p)
	return args.Error(0)
}

func (m *MockPaymentStore) DeletePayment(id string) error {
	args := m.Called(id)
	return args.Error(0)
}

type MockBookingStore struct {
	mock.Mock
}

func (m *MockBookingStore) DeleteBooking(id string) error {
	args := m.Called(id)
	return args.Error(0)
}

type MockProcessor struct {
	mock.Mock
}

func (m *MockProcessor) FetchOrder(ctx context.Context, orderID string) (models.OrderDetails, error) {
	args := m.Called(orderID)
	return args.Get(0).(models.OrderDetails), args.Error(1)
}

func (m *MockProcessor) CaptureAuthorization(ctx context.Context, authorizationID string) (models.CaptureResult, error) {
	args := m.Called(authorizationID)
	return args.Get(0).(models.CaptureResult), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, owner, severity, text string) error {
	args := m.Called(owner, severity, text)
	return args.Error(0)
}

// fakeSession is an in-memory checkout session; tests assert against its
// state directly instead of going through redis.
type fakeSession struct {
	paymentID       string
	authorizationID string
	mutations       int
}

func (s *fakeSession) SetPaymentID(_ context.Context, id string) error {
	s.paymentID = id
	s.mutations++
	return nil
}

func (s *fakeSession) PaymentID(_ context.Context) (string, error) { return s.paymentID, nil }

func (s *fakeSession) ClearPaymentID(_ context.Context) error {
	s.paymentID = ""
	s.mutations++
	return nil
}

func (s *fakeSession) SetAuthorizationID(_ context.Context, id string) error {
	s.authorizationID = id
	s.mutations++
	return nil
}

func (s *fakeSession) AuthorizationID(_ context.Context) (string, error) {
	return s.authorizationID, nil
}

func (s *fakeSession) ClearAuthorizationID(_ context.Context) error {
	s.authorizationID = ""
	s.mutations++
	return nil
}

var testUser = models.User{ID: "user-1", Email: "a@b.com"}

func newTestService(store *MockPaymentStore, bookings *MockBookingStore, processor *MockProcessor, notify *MockNotifier) *payment.Service {
	return payment.NewService(store, bookings, processor, nil, notify, logger.NewLogger())
}

func captureFixture() (*models.Booking, *models.Payment) {
	booking := &models.Booking{BookingID: "booking-1", UserID: testUser.ID, Reference: "REF-1", Status: "reserved"}
	pending := &models.Payment{
		PaymentID:        "pay-1",
		ProcessorOrderID: "O1",
		Currency:         "EUR",
		Amount:           "100.00",
		Status:           "CREATED",
		PayerEmail:       "a@b.com",
		UserID:           testUser.ID,
		Captured:         false,
	}
	return booking, pending
}

func TestCreatePendingPayment(t *testing.T) {
	store := new(MockPaymentStore)
	svc := newTestService(store, new(MockBookingStore), new(MockProcessor), new(MockNotifier))
	sess := &fakeSession{}

	var created models.Payment
	store.On("CreatePayment", mock.AnythingOfType("models.Payment")).Run(func(args mock.Arguments) {
		created = args.Get(0).(models.Payment)
	}).Return(nil)

	data := models.OrderData{
		OrderID:  "O1",
		Currency: "EUR",
		Value:    "100.00",
		Status:   "CREATED",
		Mail:     "a@b.com",
	}

	paymentID, err := svc.CreatePendingPayment(context.Background(), sess, data, testUser)
	require.NoError(t, err)
	assert.NotEmpty(t, paymentID)

	// Pending payment starts uncaptured with no capture id
	assert.False(t, created.Captured)
	assert.Empty(t, created.CaptureID)
	assert.Equal(t, "O1", created.ProcessorOrderID)
	assert.Equal(t, "EUR", created.Currency)
	assert.Equal(t, "100.00", created.Amount)
	assert.Equal(t, "a@b.com", created.PayerEmail)
	assert.Equal(t, testUser.ID, created.UserID)

	// Payment id stashed in the checkout session
	assert.Equal(t, paymentID, sess.paymentID)

	store.AssertExpectations(t)
}

func TestCreatePendingPaymentValidation(t *testing.T) {
	store := new(MockPaymentStore)
	svc := newTestService(store, new(MockBookingStore), new(MockProcessor), new(MockNotifier))
	sess := &fakeSession{}

	data := models.OrderData{
		OrderID:  "O1",
		Currency: "EUR",
		Value:    "100.00",
		Status:   "CREATED",
		// Mail missing
	}

	_, err := svc.CreatePendingPayment(context.Background(), sess, data, testUser)
	require.Error(t, err)
	assert.ErrorIs(t, err, payment.ErrMissingOrderField)

	// No partial state: nothing persisted, session untouched
	store.AssertNotCalled(t, "CreatePayment", mock.Anything)
	assert.Zero(t, sess.mutations)
}

func TestCreatePendingPaymentStoreFailure(t *testing.T) {
	store := new(MockPaymentStore)
	svc := newTestService(store, new(MockBookingStore), new(MockProcessor), new(MockNotifier))
	sess := &fakeSession{}

	store.On("CreatePayment", mock.AnythingOfType("models.Payment")).Return(errors.New("connection refused"))

	data := models.OrderData{
		OrderID:  "O1",
		Currency: "EUR",
		Value:    "100.00",
		Status:   "CREATED",
		Mail:     "a@b.com",
	}

	_, err := svc.CreatePendingPayment(context.Background(), sess, data, testUser)
	require.Error(t, err)

	// Store failures propagate and never reach the session
	assert.Zero(t, sess.mutations)
}

func TestRequestAuthorization(t *testing.T) {
	processor := new(MockProcessor)
	svc := newTestService(new(MockPaymentStore), new(MockBookingStore), processor, new(MockNotifier))
	sess := &fakeSession{paymentID: "stale-payment"}

	details := models.OrderDetails{
		OrderID: "O1",
		Status:  "APPROVED",
		Amount:  models.OrderAmount{CurrencyCode: "EUR", Value: "100.00"},
	}
	processor.On("FetchOrder", "O1").Return(details, nil)

	body := []byte(`{"authorizationID":"AUTH-1","id":"O1"}`)
	got, err := svc.RequestAuthorization(context.Background(), sess, body, testUser)
	require.NoError(t, err)

	// Processor result is returned unchanged
	assert.Equal(t, details, got)

	// The stale payment key is cleared and the authorization recorded
	assert.Empty(t, sess.paymentID)
	assert.Equal(t, "AUTH-1", sess.authorizationID)

	processor.AssertExpectations(t)
}

func TestRequestAuthorizationMissingID(t *testing.T) {
	processor := new(MockProcessor)
	svc := newTestService(new(MockPaymentStore), new(MockBookingStore), processor, new(MockNotifier))
	sess := &fakeSession{paymentID: "stale-payment"}

	body := []byte(`{"id":"O1"}`)
	_, err := svc.RequestAuthorization(context.Background(), sess, body, testUser)
	require.Error(t, err)
	assert.ErrorIs(t, err, payment.ErrMissingAuthorizationID)

	// Validation aborts before any session mutation or processor call
	assert.Zero(t, sess.mutations)
	assert.Equal(t, "stale-payment", sess.paymentID)
	processor.AssertNotCalled(t, "FetchOrder", mock.Anything)
}

func TestRequestAuthorizationMalformedBody(t *testing.T) {
	processor := new(MockProcessor)
	svc := newTestService(new(MockPaymentStore), new(MockBookingStore), processor, new(MockNotifier))
	sess := &fakeSession{}

	_, err := svc.RequestAuthorization(context.Background(), sess, []byte(`not-json`), testUser)
	require.Error(t, err)
	assert.Zero(t, sess.mutations)
	processor.AssertNotCalled(t, "FetchOrder", mock.Anything)
}

func TestCaptureStatusClassification(t *testing.T) {
	tests := []struct {
		name       string
		status     string
		compensate bool
	}{
		{"completed finalizes", "COMPLETED", false},
		{"pending finalizes", "PENDING", false},
		{"declined compensates", "DECLINED", true},
		{"empty status compensates", "", true},
		{"unknown status compensates", "SOMETHING_ELSE", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(MockPaymentStore)
			bookings := new(MockBookingStore)
			processor := new(MockProcessor)
			notify := new(MockNotifier)
			svc := newTestService(store, bookings, processor, notify)

			booking, pending := captureFixture()
			sess := &fakeSession{authorizationID: "AUTH-1"}

			processor.On("CaptureAuthorization", "AUTH-1").
				Return(models.CaptureResult{CaptureID: "CAP1", Status: tt.status}, nil)

			if tt.compensate {
				store.On("DeletePayment", pending.PaymentID).Return(nil)
				bookings.On("DeleteBooking", booking.BookingID).Return(nil)
				notify.On("Notify", testUser.ID, notifier.SeverityDanger, payment.FailureNotice).Return(nil)
			} else {
				store.On("UpdatePayment", mock.AnythingOfType("models.Payment")).Return(nil)
			}

			outcome, err := svc.CapturePayment(context.Background(), sess, booking, pending, testUser)
			require.NoError(t, err)

			if tt.compensate {
				assert.Equal(t, payment.OutcomeRolledBack, outcome)
				assert.False(t, pending.Captured)
				assert.Empty(t, pending.CaptureID)
				store.AssertNotCalled(t, "UpdatePayment", mock.Anything)
			} else {
				assert.Equal(t, payment.OutcomeSuccess, outcome)
				assert.True(t, pending.Captured)
				assert.Equal(t, "CAP1", pending.CaptureID)
				store.AssertNotCalled(t, "DeletePayment", mock.Anything)
				bookings.AssertNotCalled(t, "DeleteBooking", mock.Anything)
			}

			// The authorization never survives a terminal outcome
			assert.Empty(t, sess.authorizationID)

			store.AssertExpectations(t)
			bookings.AssertExpectations(t)
			processor.AssertExpectations(t)
		})
	}
}

func TestCaptureTransportError(t *testing.T) {
	store := new(MockPaymentStore)
	bookings := new(MockBookingStore)
	processor := new(MockProcessor)
	notify := new(MockNotifier)
	svc := newTestService(store, bookings, processor, notify)

	booking, pending := captureFixture()
	sess := &fakeSession{authorizationID: "AUTH-1"}

	processor.On("CaptureAuthorization", "AUTH-1").
		Return(models.CaptureResult{}, errors.New("connection reset by peer"))
	store.On("DeletePayment", pending.PaymentID).Return(nil)
	bookings.On("DeleteBooking", booking.BookingID).Return(nil)
	notify.On("Notify", testUser.ID, notifier.SeverityDanger, payment.FailureNotice).Return(nil)

	outcome, err := svc.CapturePayment(context.Background(), sess, booking, pending, testUser)
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomeFailed, outcome)
	assert.False(t, pending.Captured)
	assert.Empty(t, sess.authorizationID)

	store.AssertExpectations(t)
	bookings.AssertExpectations(t)
	notify.AssertExpectations(t)
}

func TestCaptureWithoutAuthorization(t *testing.T) {
	store := new(MockPaymentStore)
	bookings := new(MockBookingStore)
	processor := new(MockProcessor)
	notify := new(MockNotifier)
	svc := newTestService(store, bookings, processor, notify)

	booking, pending := captureFixture()
	sess := &fakeSession{} // no authorization id recorded

	store.On("DeletePayment", pending.PaymentID).Return(nil)
	bookings.On("DeleteBooking", booking.BookingID).Return(nil)
	notify.On("Notify", testUser.ID, notifier.SeverityDanger, payment.FailureNotice).Return(nil)

	outcome, err := svc.CapturePayment(context.Background(), sess, booking, pending, testUser)
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomeRolledBack, outcome)

	// The processor is never called without an authorization id
	processor.AssertNotCalled(t, "CaptureAuthorization", mock.Anything)
}

func TestCompensationIsIdempotent(t *testing.T) {
	store := new(MockPaymentStore)
	bookings := new(MockBookingStore)
	processor := new(MockProcessor)
	notify := new(MockNotifier)
	svc := newTestService(store, bookings, processor, notify)

	booking, pending := captureFixture()
	sess := &fakeSession{authorizationID: "AUTH-1"}

	processor.On("CaptureAuthorization", "AUTH-1").
		Return(models.CaptureResult{Status: "DECLINED"}, nil)
	// Deletes answer nil both times: absent rows are not errors
	store.On("DeletePayment", pending.PaymentID).Return(nil).Twice()
	bookings.On("DeleteBooking", booking.BookingID).Return(nil).Twice()
	notify.On("Notify", testUser.ID, notifier.SeverityDanger, payment.FailureNotice).Return(nil).Twice()

	outcome, err := svc.CapturePayment(context.Background(), sess, booking, pending, testUser)
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomeRolledBack, outcome)

	// A retried capture after compensation compensates again with no new
	// side effects beyond the already-idempotent deletes
	sess.authorizationID = "AUTH-1"
	processor.On("CaptureAuthorization", "AUTH-1").
		Return(models.CaptureResult{Status: "DECLINED"}, nil)

	outcome, err = svc.CapturePayment(context.Background(), sess, booking, pending, testUser)
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomeRolledBack, outcome)

	store.AssertExpectations(t)
	bookings.AssertExpectations(t)
}

func TestCompensationContinuesAfterPartialFailure(t *testing.T) {
	store := new(MockPaymentStore)
	bookings := new(MockBookingStore)
	processor := new(MockProcessor)
	notify := new(MockNotifier)
	svc := newTestService(store, bookings, processor, notify)

	booking, pending := captureFixture()
	sess := &fakeSession{authorizationID: "AUTH-1"}

	processor.On("CaptureAuthorization", "AUTH-1").
		Return(models.CaptureResult{Status: "DECLINED"}, nil)
	store.On("DeletePayment", pending.PaymentID).Return(errors.New("connection refused"))
	bookings.On("DeleteBooking", booking.BookingID).Return(nil)
	notify.On("Notify", testUser.ID, notifier.SeverityDanger, payment.FailureNotice).Return(nil)

	outcome, err := svc.CapturePayment(context.Background(), sess, booking, pending, testUser)
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomeRolledBack, outcome)

	// The booking delete still ran despite the payment delete failing
	bookings.AssertExpectations(t)
}

func TestCaptureFinalizePersistenceFailure(t *testing.T) {
	store := new(MockPaymentStore)
	bookings := new(MockBookingStore)
	processor := new(MockProcessor)
	notify := new(MockNotifier)
	svc := newTestService(store, bookings, processor, notify)

	booking, pending := captureFixture()
	sess := &fakeSession{authorizationID: "AUTH-1"}

	processor.On("CaptureAuthorization", "AUTH-1").
		Return(models.CaptureResult{CaptureID: "CAP1", Status: "COMPLETED"}, nil)
	store.On("UpdatePayment", mock.AnythingOfType("models.Payment")).Return(errors.New("deadlock detected"))

	outcome, err := svc.CapturePayment(context.Background(), sess, booking, pending, testUser)

	// Persistence failures surface as errors and are never masked as a
	// processor rejection: no compensation runs
	require.Error(t, err)
	assert.Equal(t, payment.OutcomeFailed, outcome)
	store.AssertNotCalled(t, "DeletePayment", mock.Anything)
	bookings.AssertNotCalled(t, "DeleteBooking", mock.Anything)
}

// End-to-end scenarios over the full create → authorize → capture sequence.

func TestEndToEndCaptureCompleted(t *testing.T) {
	store := new(MockPaymentStore)
	bookings := new(MockBookingStore)
	processor := new(MockProcessor)
	notify := new(MockNotifier)
	svc := newTestService(store, bookings, processor, notify)
	sess := &fakeSession{}
	ctx := context.Background()

	var pending models.Payment
	store.On("CreatePayment", mock.AnythingOfType("models.Payment")).Run(func(args mock.Arguments) {
		pending = args.Get(0).(models.Payment)
	}).Return(nil)
	processor.On("FetchOrder", "O1").Return(models.OrderDetails{OrderID: "O1", Status: "APPROVED"}, nil)
	processor.On("CaptureAuthorization", "AUTH-1").
		Return(models.CaptureResult{CaptureID: "CAP1", Status: "COMPLETED"}, nil)
	store.On("UpdatePayment", mock.AnythingOfType("models.Payment")).Return(nil)

	_, err := svc.CreatePendingPayment(ctx, sess, models.OrderData{
		OrderID: "O1", Currency: "EUR", Value: "100.00", Status: "CREATED", Mail: "a@b.com",
	}, testUser)
	require.NoError(t, err)
	assert.False(t, pending.Captured)

	_, err = svc.RequestAuthorization(ctx, sess, []byte(`{"authorizationID":"AUTH-1","id":"O1"}`), testUser)
	require.NoError(t, err)

	booking := &models.Booking{BookingID: "booking-1", UserID: testUser.ID, Reference: "REF-1", Status: "reserved"}
	outcome, err := svc.CapturePayment(ctx, sess, booking, &pending, testUser)
	require.NoError(t, err)

	assert.Equal(t, payment.OutcomeSuccess, outcome)
	assert.True(t, pending.Captured)
	assert.Equal(t, "CAP1", pending.CaptureID)

	// Booking untouched on success
	bookings.AssertNotCalled(t, "DeleteBooking", mock.Anything)
}

func TestEndToEndCaptureDeclined(t *testing.T) {
	store := new(MockPaymentStore)
	bookings := new(MockBookingStore)
	processor := new(MockProcessor)
	notify := new(MockNotifier)
	svc := newTestService(store, bookings, processor, notify)
	sess := &fakeSession{}
	ctx := context.Background()

	var pending models.Payment
	store.On("CreatePayment", mock.AnythingOfType("models.Payment")).Run(func(args mock.Arguments) {
		pending = args.Get(0).(models.Payment)
	}).Return(nil)
	processor.On("FetchOrder", "O1").Return(models.OrderDetails{OrderID: "O1", Status: "APPROVED"}, nil)
	processor.On("CaptureAuthorization", "AUTH-1").
		Return(models.CaptureResult{Status: "DECLINED"}, nil)
	notify.On("Notify", testUser.ID, notifier.SeverityDanger, payment.FailureNotice).Return(nil)

	_, err := svc.CreatePendingPayment(ctx, sess, models.OrderData{
		OrderID: "O1", Currency: "EUR", Value: "100.00", Status: "CREATED", Mail: "a@b.com",
	}, testUser)
	require.NoError(t, err)

	_, err = svc.RequestAuthorization(ctx, sess, []byte(`{"authorizationID":"AUTH-1","id":"O1"}`), testUser)
	require.NoError(t, err)

	booking := &models.Booking{BookingID: "booking-1", UserID: testUser.ID, Reference: "REF-1", Status: "reserved"}
	store.On("DeletePayment", pending.PaymentID).Return(nil)
	bookings.On("DeleteBooking", booking.BookingID).Return(nil)

	outcome, err := svc.CapturePayment(ctx, sess, booking, &pending, testUser)
	require.NoError(t, err)

	assert.Equal(t, payment.OutcomeRolledBack, outcome)
	assert.False(t, pending.Captured)
	store.AssertExpectations(t)
	bookings.AssertExpectations(t)
	notify.AssertExpectations(t)
}

func TestEndToEndCaptureTransportError(t *testing.T) {
	store := new(MockPaymentStore)
	bookings := new(MockBookingStore)
	processor := new(MockProcessor)
	notify := new(MockNotifier)
	svc := newTestService(store, bookings, processor, notify)
	sess := &fakeSession{}
	ctx := context.Background()

	var pending models.Payment
	store.On("CreatePayment", mock.AnythingOfType("models.Payment")).Run(func(args mock.Arguments) {
		pending = args.Get(0).(models.Payment)
	}).Return(nil)
	processor.On("FetchOrder", "O1").Return(models.OrderDetails{OrderID: "O1", Status: "APPROVED"}, nil)
	processor.On("CaptureAuthorization", "AUTH-1").
		Return(models.CaptureResult{}, errors.New("i/o timeout"))
	notify.On("Notify", testUser.ID, notifier.SeverityDanger, payment.FailureNotice).Return(nil)

	_, err := svc.CreatePendingPayment(ctx, sess, models.OrderData{
		OrderID: "O1", Currency: "EUR", Value: "100.00", Status: "CREATED", Mail: "a@b.com",
	}, testUser)
	require.NoError(t, err)

	_, err = svc.RequestAuthorization(ctx, sess, []byte(`{"authorizationID":"AUTH-1","id":"O1"}`), testUser)
	require.NoError(t, err)

	booking := &models.Booking{BookingID: "booking-1", UserID: testUser.ID, Reference: "REF-1", Status: "reserved"}
	store.On("DeletePayment", pending.PaymentID).Return(nil)
	bookings.On("DeleteBooking", booking.BookingID).Return(nil)

	outcome, err := svc.CapturePayment(ctx, sess, booking, &pending, testUser)
	require.NoError(t, err)

	// Same terminal state as a declined capture
	assert.Equal(t, payment.OutcomeFailed, outcome)
	assert.False(t, pending.Captured)
	store.AssertExpectations(t)
	bookings.AssertExpectations(t)
	notify.AssertExpectations(t)
}
