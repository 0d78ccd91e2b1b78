package recipient

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tuition-notify/internal/domain"
	"github.com/tuition-notify/internal/pkg/id"
)

// Directory is the read side of the user directory the resolver needs.
type Directory interface {
	FindByID(ctx context.Context, userID string) (*domain.User, error)
	// FindByIDs returns the users that exist among ids, in any order.
	FindByIDs(ctx context.Context, ids []string) ([]domain.User, error)
	FindByRole(ctx context.Context, role string) ([]domain.User, error)
}

// Resolver decides who hears about an event and on which channels.
type Resolver struct {
	dir     Directory
	validID func(string) bool
}

func NewResolver(dir Directory) *Resolver {
	return &Resolver{dir: dir, validID: id.Valid}
}

// Resolve computes the recipients of ev. The actor is never a recipient and
// every user appears at most once. Only directory failures are returned as errors.
func (r *Resolver) Resolve(ctx context.Context, ev domain.Event) (domain.Recipients, error) {
	if !ev.Kind.Valid() {
		return domain.Recipients{}, fmt.Errorf("unknown event kind %q: %w", ev.Kind, domain.ErrValidation)
	}

	var (
		loaded []domain.User
		refs   []domain.UserRef
		err    error
	)
	switch ev.Kind {
	case domain.KindTuitionPost:
		loaded, err = r.dir.FindByRole(ctx, domain.RoleTeacher)
		if err != nil {
			return domain.Recipients{}, fmt.Errorf("find teachers: %w", err)
		}
	case domain.KindComment, domain.KindLike, domain.KindFavorite, domain.KindRating:
		refs = append(refs, domain.RefID(r.ownerOf(ev)))
		admins, err := r.dir.FindByRole(ctx, domain.RoleAdmin)
		if err != nil {
			return domain.Recipients{}, fmt.Errorf("find admins: %w", err)
		}
		loaded = admins
		if ev.Kind == domain.KindComment {
			refs = append(refs, ev.Subject.Commenters...)
		}
	default:
		refs = append(refs, domain.RefID(r.ownerOf(ev)))
	}

	users, err := r.collect(ctx, ev, loaded, refs)
	if err != nil {
		return domain.Recipients{}, err
	}
	return Partition(users), nil
}

func (r *Resolver) ownerOf(ev domain.Event) string {
	if ev.SubjectOwnerID != "" {
		return ev.SubjectOwnerID
	}
	return ev.Subject.CreatedBy
}

// collect merges directory-loaded users with referenced IDs, drops malformed
// and unknown IDs, removes the actor and de-duplicates by ID.
func (r *Resolver) collect(ctx context.Context, ev domain.Event, loaded []domain.User, refs []domain.UserRef) ([]domain.User, error) {
	byID := make(map[string]domain.User, len(loaded))
	order := make([]string, 0, len(loaded)+len(refs))
	add := func(u domain.User) {
		if _, ok := byID[u.ID]; ok {
			return
		}
		byID[u.ID] = u
		order = append(order, u.ID)
	}

	// Referenced users (owner first, then commenters) keep precedence in ordering.
	ids, dropped := domain.NormalizeRefs(refs, r.validID)
	for _, err := range dropped {
		log.Warn().Err(err).Str("kind", string(ev.Kind)).Str("subject_id", ev.Subject.ID).Msg("dropping recipient")
	}
	if len(ids) > 0 {
		found, err := r.dir.FindByIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("find users: %w", err)
		}
		indexed := make(map[string]domain.User, len(found))
		for _, u := range found {
			indexed[u.ID] = u
		}
		for _, uid := range ids {
			u, ok := indexed[uid]
			if !ok {
				log.Warn().Str("user_id", uid).Str("kind", string(ev.Kind)).Msg("recipient not in directory")
				continue
			}
			add(u)
		}
	}
	for _, u := range loaded {
		if !r.validID(u.ID) {
			log.Warn().Str("user_id", u.ID).Msg("directory returned malformed user id")
			continue
		}
		add(u)
	}

	out := make([]domain.User, 0, len(order))
	for _, uid := range order {
		if uid == ev.ActorID {
			continue
		}
		out = append(out, byID[uid])
	}
	return out, nil
}

// Partition splits users into per-channel lists of eligible recipients.
// Every user gets an in-app record.
func Partition(users []domain.User) domain.Recipients {
	var rs domain.Recipients
	rs.InApp = make([]string, 0, len(users))
	for _, u := range users {
		rs.InApp = append(rs.InApp, u.ID)
		if u.Eligible(domain.ChannelEmail) {
			rs.Email = append(rs.Email, u)
		}
		if u.Eligible(domain.ChannelWhatsApp) {
			rs.WhatsApp = append(rs.WhatsApp, u)
		}
		if u.Eligible(domain.ChannelTelegram) {
			rs.Telegram = append(rs.Telegram, u)
		}
		if u.Eligible(domain.ChannelPush) {
			rs.Push = append(rs.Push, u)
		}
	}
	return rs
}
