package game

// Avatars players can pick from; DefaultAvatar is used for users who never
// chose one.
var Avatars = []string{
	"🦊", "🐼", "🦁", "🐯", "🐸", "🦉", "🦋", "🐙",
	"🦄", "🐲", "🦖", "🐳", "🦀", "🐝", "🦜", "🐨",
	"🐰", "🐻", "🦈", "🐺",
}

const DefaultAvatar = "👤"
