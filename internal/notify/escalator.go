// Package notify escalates recorded update requests to the nearest org level
// that has someone able to review them.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hubatlas/backend/internal/apperr"
	"github.com/hubatlas/backend/internal/models"
	"github.com/hubatlas/backend/internal/orgs"
)

// Roster resolves the notifiable admins/editors assigned directly to an org.
type Roster interface {
	AdminsAndEditors(ctx context.Context, orgID int64) ([]models.Recipient, error)
}

// Sender delivers one notification. Implemented by the SMTP mailer.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// LogStore records every attempted send.
type LogStore interface {
	Record(ctx context.Context, log *models.NotificationLog) error
}

// Notification is one recipient's copy of an escalation notice.
type Notification struct {
	Request        *models.UpdateRequest
	Recipient      models.Recipient
	RecipientOrg   *models.Org
	NoAdminsNotice bool
}

// Escalator walks region → area → sector → nation looking for the first org
// level with at least one admin or editor, then notifies all of them.
type Escalator struct {
	chains orgs.ChainSource
	roster Roster
	sender Sender
	logs   LogStore
	logger *zap.Logger
}

// NewEscalator creates an escalator. logs may be nil.
func NewEscalator(chains orgs.ChainSource, roster Roster, sender Sender, logs LogStore, logger *zap.Logger) *Escalator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Escalator{chains: chains, roster: roster, sender: sender, logs: logs, logger: logger}
}

// Notify finds the nearest org up the request's region chain that has at
// least one admin/editor and sends each of them a notice in parallel. A
// recipient's send failure is logged and does not abort sibling sends or the
// overall call. A chain that does not reach the level being escalated to is a
// hard error naming the missing level: an unreachable nation means no one can
// ever be notified.
func (e *Escalator) Notify(ctx context.Context, req *models.UpdateRequest) error {
	chain, err := e.chains.AncestorChain(ctx, req.RegionID)
	if err != nil {
		return err
	}
	region := chain.At(models.OrgTypeRegion)
	if region == nil {
		return apperr.NotFound("region not found for request %s", req.ID)
	}

	levels := []models.OrgType{models.OrgTypeRegion, models.OrgTypeArea, models.OrgTypeSector, models.OrgTypeNation}
	for i, level := range levels {
		org := chain.At(level)
		if org == nil {
			return apperr.NotFound("%s not found above %s %q", level, levels[i-1], chain.At(levels[i-1]).Name)
		}
		recipients, err := e.roster.AdminsAndEditors(ctx, org.ID)
		if err != nil {
			return err
		}
		if len(recipients) == 0 {
			continue
		}
		e.sendAll(ctx, req, org, recipients, level != models.OrgTypeRegion)
		return nil
	}

	e.logger.Warn("no admins or editors found at any level",
		zap.String("request_id", req.ID.String()),
		zap.Int64("region_id", req.RegionID))
	return nil
}

func (e *Escalator) sendAll(ctx context.Context, req *models.UpdateRequest, org *models.Org, recipients []models.Recipient, noAdminsNotice bool) {
	var wg sync.WaitGroup
	for _, rec := range recipients {
		wg.Add(1)
		go func(rec models.Recipient) {
			defer wg.Done()
			n := Notification{Request: req, Recipient: rec, RecipientOrg: org, NoAdminsNotice: noAdminsNotice}
			err := e.sender.Send(ctx, n)
			e.record(ctx, n, err)
			if err != nil {
				e.logger.Warn("notification send failed",
					zap.String("request_id", req.ID.String()),
					zap.String("recipient", rec.Email),
					zap.Error(apperr.Delivery(err, "notify %s", rec.Email)))
			}
		}(rec)
	}
	wg.Wait()
}

func (e *Escalator) record(ctx context.Context, n Notification, sendErr error) {
	if e.logs == nil {
		return
	}
	log := &models.NotificationLog{
		ID:             uuid.New(),
		RequestID:      n.Request.ID,
		RecipientEmail: n.Recipient.Email,
		RecipientOrgID: n.RecipientOrg.ID,
		NoAdminsNotice: n.NoAdminsNotice,
		Status:         models.NotificationStatusSent,
	}
	if sendErr != nil {
		log.Status = models.NotificationStatusFailed
		log.ErrorMessage = sendErr.Error()
	} else {
		now := time.Now().UTC()
		log.SentAt = &now
	}
	if err := e.logs.Record(ctx, log); err != nil {
		e.logger.Warn("record notification log failed", zap.Error(err))
	}
}
