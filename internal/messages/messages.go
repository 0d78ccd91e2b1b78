// Package messages builds the user-facing title and body of each notification kind.
package messages

import (
	"fmt"
	"strings"

	"github.com/tuition-notify/internal/domain"
)

// For returns the content announcing ev. actorName may be empty.
func For(ev domain.Event, actorName string) domain.Content {
	actor := strings.TrimSpace(actorName)
	if actor == "" {
		actor = Someone
	}
	s := ev.Subject

	switch ev.Kind {
	case domain.KindTuitionPost:
		return TuitionPost(s)
	case domain.KindApplication:
		return content(ApplicationTitle, fmt.Sprintf(ApplicationBody, actor, s.Title))
	case domain.KindLike:
		return content(LikeTitle, fmt.Sprintf(LikeBody, actor, s.Title))
	case domain.KindComment:
		return content(CommentTitle, fmt.Sprintf(CommentBody, actor, s.Title))
	case domain.KindFavorite:
		return content(FavoriteTitle, fmt.Sprintf(FavoriteBody, actor))
	case domain.KindRating:
		return Rating(actor, s.Stars, s.Excerpt)
	case domain.KindMessage:
		return content(MessageTitle, fmt.Sprintf(MessageBody, actor))
	}
	body := s.Excerpt
	if body == "" {
		body = s.Title
	}
	return content(SystemTitle, body)
}

// TuitionPost summarises a new listing in one line.
func TuitionPost(s domain.Subject) domain.Content {
	if s.Listing == nil {
		return content(TuitionPostTitle, s.Title)
	}
	return content(TuitionPostTitle, fmt.Sprintf(TuitionPostBody, s.Title, s.Listing.Class, s.Listing.Subject, s.Listing.Salary))
}

func Rating(actor string, stars int, comment string) domain.Content {
	if comment = strings.TrimSpace(comment); comment != "" {
		return content(RatingTitle, fmt.Sprintf(RatingWithComment, actor, stars, comment))
	}
	return content(RatingTitle, fmt.Sprintf(RatingBody, actor, stars))
}

func TelegramWelcome() domain.Content {
	return content(TelegramWelcomeTitle, TelegramWelcomeBody)
}

func content(title, body string) domain.Content {
	return domain.Content{Title: title, Message: body}
}
