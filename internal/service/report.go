package service

import (
	"context"
	"fmt"
	"sort"

	apperrors "github.com/openclaw/attendance-server-go/internal/errors"
	"github.com/openclaw/attendance-server-go/internal/export"
	"github.com/openclaw/attendance-server-go/internal/model"
	"github.com/openclaw/attendance-server-go/internal/repository"
)

const defaultRejectedLimit = 200

type ScanCounts struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
	Archived int `json:"archived"`
}

type SessionScansReport struct {
	Session  *model.Session       `json:"session"`
	Accepted []model.AcceptedScan `json:"accepted"`
	Rejected []model.RejectedScan `json:"rejected"`
	Counts   ScanCounts           `json:"counts"`
}

type SessionArchiveReport struct {
	Session  *model.Session       `json:"session"`
	Archived []model.ArchivedScan `json:"archived"`
}

// ReportService is a read-only projection over recorded scans.
type ReportService struct {
	sessionRepo   repository.SessionRepository
	scanRepo      repository.AcceptedScanRepository
	rejectionRepo repository.RejectedScanRepository
	archiveRepo   repository.ArchiveRepository
}

func NewReportService(
	sessionRepo repository.SessionRepository,
	scanRepo repository.AcceptedScanRepository,
	rejectionRepo repository.RejectedScanRepository,
	archiveRepo repository.ArchiveRepository,
) *ReportService {
	return &ReportService{
		sessionRepo:   sessionRepo,
		scanRepo:      scanRepo,
		rejectionRepo: rejectionRepo,
		archiveRepo:   archiveRepo,
	}
}

// Scans lists the live records of a session. At most rejectedLimit rejections
// are returned, newest first; a non-positive limit selects the default.
func (s *ReportService) Scans(ctx context.Context, owner *model.Owner, sessionID string, rejectedLimit int) (*SessionScansReport, error) {
	if rejectedLimit <= 0 {
		rejectedLimit = defaultRejectedLimit
	}
	session, err := findOwnedSession(ctx, s.sessionRepo, owner, sessionID)
	if err != nil {
		return nil, err
	}

	accepted, err := s.scanRepo.FindBySession(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("find accepted scans: %w", err)
	}
	rejected, err := s.rejectionRepo.FindBySession(ctx, session.ID, rejectedLimit)
	if err != nil {
		return nil, fmt.Errorf("find rejected scans: %w", err)
	}
	rejectedCount, err := s.rejectionRepo.CountBySession(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("count rejected scans: %w", err)
	}
	archivedCount, err := s.archiveRepo.CountBySession(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("count archived scans: %w", err)
	}

	return &SessionScansReport{
		Session:  session,
		Accepted: accepted,
		Rejected: rejected,
		Counts: ScanCounts{
			Accepted: len(accepted),
			Rejected: rejectedCount,
			Archived: archivedCount,
		},
	}, nil
}

func (s *ReportService) Archive(ctx context.Context, owner *model.Owner, sessionID string) (*SessionArchiveReport, error) {
	session, err := findOwnedSession(ctx, s.sessionRepo, owner, sessionID)
	if err != nil {
		return nil, err
	}

	archived, err := s.archiveRepo.FindBySession(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("find archived scans: %w", err)
	}
	return &SessionArchiveReport{Session: session, Archived: archived}, nil
}

// Sheet builds the attendance sheet for export. Ended sessions read from the
// archive; active sessions, or ended ones whose archive is empty, read from the
// live table.
func (s *ReportService) Sheet(ctx context.Context, owner *model.Owner, sessionID string) (*export.Sheet, error) {
	session, err := findOwnedSession(ctx, s.sessionRepo, owner, sessionID)
	if err != nil {
		return nil, err
	}

	var scans []model.AcceptedScan
	if !session.IsActive {
		archived, err := s.archiveRepo.FindBySession(ctx, session.ID)
		if err != nil {
			return nil, fmt.Errorf("find archived scans: %w", err)
		}
		for _, a := range archived {
			scans = append(scans, a.AcceptedScan)
		}
	}
	if len(scans) == 0 {
		scans, err = s.scanRepo.FindBySession(ctx, session.ID)
		if err != nil {
			return nil, fmt.Errorf("find accepted scans: %w", err)
		}
	}

	sort.SliceStable(scans, func(i, j int) bool {
		return scans[i].VerifiedAt.Before(scans[j].VerifiedAt)
	})

	sheet := &export.Sheet{
		SessionID: session.ID,
		OwnerName: owner.Name,
		AnchorLat: session.AnchorLat,
		AnchorLon: session.AnchorLon,
		StartedAt: session.StartedAt,
		EndedAt:   session.EndedAt,
		Rows:      make([]export.Row, 0, len(scans)),
	}
	for _, scan := range scans {
		sheet.Rows = append(sheet.Rows, export.Row{
			SubjectID:     scan.SubjectID,
			FirstName:     scan.FirstName,
			LastName:      scan.LastName,
			VerifiedAt:    scan.VerifiedAt,
			ClientTS:      scan.ClientTS,
			DistanceM:     scan.DistanceM,
			DeviceID:      scan.DeviceID,
			ClientVersion: scan.ClientVersion,
		})
	}
	return sheet, nil
}

func ParseExportFormat(raw string) (model.ExportFormat, error) {
	switch model.ExportFormat(raw) {
	case "", model.ExportFormatCSV:
		return model.ExportFormatCSV, nil
	case model.ExportFormatXLSX, "excel":
		return model.ExportFormatXLSX, nil
	default:
		return "", apperrors.ValidationError("format must be csv or xlsx")
	}
}
