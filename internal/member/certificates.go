package member

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"github.com/kgcollins/parishport/internal/gateway"
	"github.com/kgcollins/parishport/internal/model"
)

// CertFile is one certificate selected in the member form, bound to a
// sacrament slot. Content bytes exist only until upload.
type CertFile struct {
	Type    model.SacramentType
	Name    string
	Content []byte
}

// SaveResult reports the outcome of one member-form submit. The member
// record's success is independent of the certificate uploads: CertErr
// collects any upload failures for a member that was still saved.
type SaveResult struct {
	Member  *model.Member
	CertErr error
}

// Save submits the member form, then fans out the selected certificate
// uploads concurrently against the saved member id. Each upload targets an
// independent attachment slot, so one failure never stops the others.
func (c *Controller) Save(ctx context.Context, p gateway.MemberPayload, certs []CertFile) (*SaveResult, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}

	var (
		m   *model.Member
		err error
	)
	if id, editing := c.Editing(); editing {
		m, err = c.gw.UpdateMember(ctx, id, cleanPayload(p))
	} else {
		m, err = c.gw.CreateMember(ctx, cleanPayload(p))
	}
	if err != nil {
		return nil, err
	}

	certErr := c.uploadAll(ctx, m.ID, certs)

	if _, err := c.List(ctx); err != nil {
		c.logger.Warn("reload members after save", "error", err)
	}
	c.ResetEditState()

	return &SaveResult{Member: m, CertErr: certErr}, nil
}

func (c *Controller) uploadAll(ctx context.Context, memberID int64, certs []CertFile) error {
	if len(certs) == 0 {
		return nil
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)
	for _, cert := range certs {
		wg.Add(1)
		go func(cert CertFile) {
			defer wg.Done()
			if _, err := c.gw.UploadCertificate(ctx, memberID, cert.Type, cert.Name, cert.Content); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("%s certificate: %w", cert.Type, err))
				mu.Unlock()
			}
		}(cert)
	}
	wg.Wait()
	return errs
}

// UploadCertificate attaches one certificate outside the save flow. The
// member must already exist in the current session; otherwise this fails
// locally without a network call.
func (c *Controller) UploadCertificate(ctx context.Context, memberID int64, t model.SacramentType, name string, content []byte) (*model.CertificateInfo, error) {
	if err := c.requireMember(memberID, t); err != nil {
		return nil, err
	}
	return c.gw.UploadCertificate(ctx, memberID, t, name, content)
}

// Certificates lists the member's attachments keyed by sacrament type.
func (c *Controller) Certificates(ctx context.Context, memberID int64) (map[model.SacramentType]model.CertificateInfo, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}
	return c.gw.Certificates(ctx, memberID)
}

// DeleteCertificate removes one attachment. Toggling a sacrament's occurred
// flag off never triggers this implicitly; certificates persist until
// deleted here.
func (c *Controller) DeleteCertificate(ctx context.Context, memberID int64, t model.SacramentType) error {
	if err := c.requireMember(memberID, t); err != nil {
		return err
	}
	return c.gw.DeleteCertificate(ctx, memberID, t)
}

// DownloadCertificate fetches the attachment bytes and their filename.
func (c *Controller) DownloadCertificate(ctx context.Context, memberID int64, t model.SacramentType) (string, []byte, error) {
	if err := c.requireMember(memberID, t); err != nil {
		return "", nil, err
	}
	return c.gw.DownloadCertificate(ctx, memberID, t)
}

func (c *Controller) requireMember(memberID int64, t model.SacramentType) error {
	if err := c.requireSession(); err != nil {
		return err
	}
	if !t.Valid() {
		return &model.ValidationError{Field: "certificate_type", Message: fmt.Sprintf("unknown sacrament type %q", t)}
	}
	if _, ok := c.cache.FindMember(memberID); !ok {
		return &model.ValidationError{Field: "member_id", Message: "Please save the member first before managing certificates."}
	}
	return nil
}
