package messages

// ─── Listings ────────────────────────────────────────────────────────────────

const (
	TuitionPostTitle = "🎓 New Tuition Opportunity"
	// title - class subject (₹salary)
	TuitionPostBody = "%s - %s %s (₹%s)"

	ApplicationTitle = "New Application 📩"
	ApplicationBody  = "%s applied to your post: \"%s\""
)

// ─── Interactions ────────────────────────────────────────────────────────────

const (
	LikeTitle = "New Like ❤️"
	LikeBody  = "%s liked your post: \"%s\""

	CommentTitle = "New Comment 💬"
	CommentBody  = "%s commented on your post: \"%s\""

	FavoriteTitle = "New Favorite ⭐"
	FavoriteBody  = "%s added your post to favorites"

	RatingTitle       = "New Rating ⭐"
	RatingBody        = "%s rated you %d stars"
	RatingWithComment = "%s rated you %d stars: \"%s\""
)

// ─── Direct ──────────────────────────────────────────────────────────────────

const (
	MessageTitle = "New Message ✉️"
	MessageBody  = "%s sent you a message"

	SystemTitle = "Tuition App"
)

// ─── Account ─────────────────────────────────────────────────────────────────

const (
	TelegramWelcomeTitle = "Telegram connected"
	TelegramWelcomeBody  = "Welcome to Tuition App notifications! 🎓\n\nYou will now receive new tuition opportunities via Telegram.\n\nYou can disable these notifications in the app settings."
)

// Someone stands in for an actor whose name is unknown.
const Someone = "Someone"
