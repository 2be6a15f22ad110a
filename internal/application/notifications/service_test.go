package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"impact-lending-backend/internal/domain"
	"impact-lending-backend/internal/pkg/apperrors"
	"impact-lending-backend/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMail struct{ to, subject, content string }

type chanMailer struct{ sent chan sentMail }

func (m *chanMailer) Send(ctx context.Context, toEmail, toName, subject, contentHTML string) error {
	m.sent <- sentMail{to: toEmail, subject: subject, content: contentHTML}
	return nil
}

func TestMilestoneValidated_StoresAndMails(t *testing.T) {
	db := testutil.OpenDB(t)
	borrower := testutil.CreateProducer(t, db)
	mailer := &chanMailer{sent: make(chan sentMail, 1)}
	svc := &Service{DB: db, Mailer: mailer}

	loan := &domain.Loan{ID: "loan-1", BorrowerID: borrower.ID, ImpactDescription: "Solar pumps"}
	ms := &domain.Milestone{Index: 0, Amount: decimal.NewFromInt(1000)}
	require.NoError(t, svc.MilestoneValidated(context.Background(), loan, ms, "val-1"))

	list, err := svc.List(context.Background(), borrower.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.NotificationMilestoneValidated, list[0].Type)
	assert.Equal(t, "Your milestone 1 has been validated. 1000.00 USDC was released.", list[0].Message)

	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(list[0].Metadata, &meta))
	assert.Equal(t, "loan-1", meta["loanId"])
	assert.Equal(t, "val-1", meta["validationId"])

	select {
	case m := <-mailer.sent:
		assert.Equal(t, borrower.Email, m.to)
		assert.Equal(t, "Milestone 1 validated", m.subject)
		assert.Contains(t, m.content, "Solar pumps")
	case <-time.After(2 * time.Second):
		t.Fatal("email was not sent")
	}
}

func TestList_NewestFirstAndCapped(t *testing.T) {
	db := testutil.OpenDB(t)
	user := testutil.CreateProducer(t, db)
	svc := &Service{DB: db}
	base := time.Now().Add(-time.Hour)
	for i := 0; i < ListLimit+5; i++ {
		n := &domain.Notification{UserID: user.ID, Type: "t", Title: "t", Message: "m", CreatedAt: base.Add(time.Duration(i) * time.Second)}
		require.NoError(t, db.Create(n).Error)
	}
	list, err := svc.List(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Len(t, list, ListLimit)
	assert.True(t, list[0].CreatedAt.After(list[1].CreatedAt))
}

func TestMarkRead(t *testing.T) {
	db := testutil.OpenDB(t)
	owner := testutil.CreateProducer(t, db)
	other := testutil.CreateInvestor(t, db)
	svc := &Service{DB: db}

	n, err := svc.Notify(context.Background(), owner.ID, "t", "Title", "msg", nil)
	require.NoError(t, err)

	_, err = svc.MarkRead(context.Background(), other.ID, n.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	read, err := svc.MarkRead(context.Background(), owner.ID, n.ID)
	require.NoError(t, err)
	assert.True(t, read.Read)

	var stored domain.Notification
	require.NoError(t, db.First(&stored, "id = ?", n.ID).Error)
	assert.True(t, stored.Read)
}
