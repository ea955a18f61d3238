package models

import "time"

type User struct {
	ID           string    `json:"id" bson:"_id"`
	Name         string    `json:"name" bson:"name"`
	Email        string    `json:"email" bson:"email"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	ProfilePic   string    `json:"profilePic" bson:"profile_pic"`
	AboutMe      string    `json:"aboutMe" bson:"about_me"`
	CreatedAt    time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" bson:"updated_at"`
}

// UserView is the client-facing projection of a User. It never carries the
// password hash.
type UserView struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	ProfilePic string    `json:"profilePic"`
	AboutMe    string    `json:"aboutMe"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (u *User) View() UserView {
	return UserView{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		ProfilePic: u.ProfilePic,
		AboutMe:    u.AboutMe,
		CreatedAt:  u.CreatedAt,
	}
}

// Chat is a stored conversation. Members holds user IDs in insertion order.
type Chat struct {
	ID        string    `json:"id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	IsGroup   bool      `json:"isGroup" bson:"is_group"`
	Members   []string  `json:"members" bson:"members"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updated_at"`
}

func (c *Chat) HasMember(userID string) bool {
	for _, id := range c.Members {
		if id == userID {
			return true
		}
	}
	return false
}

// ChatView is a Chat with its member IDs expanded to user views.
type ChatView struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	IsGroup   bool       `json:"isGroup"`
	Members   []UserView `json:"members"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

type Message struct {
	ID        string    `json:"id" bson:"_id"`
	ChatID    string    `json:"chatId" bson:"chat_id"`
	SenderID  string    `json:"senderId" bson:"sender_id"`
	Text      string    `json:"text" bson:"text"`
	Image     string    `json:"image" bson:"image"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updated_at"`
}
