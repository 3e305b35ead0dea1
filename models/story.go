package models

import (
	"time"

	"gorm.io/gorm"
)

type MintStatus string

const (
	MintStatusNone    MintStatus = ""
	MintStatusPending MintStatus = "pending"
	// MintStatusMaster marks a story whose master token exists but whose
	// shares have not been minted yet. A retry resumes from the shares.
	MintStatusMaster MintStatus = "master_minted"
	MintStatusMinted MintStatus = "minted"
)

type Story struct {
	ID          string     `gorm:"primaryKey;type:uuid" json:"id"`
	Title       string     `gorm:"size:200" json:"title"`
	LineCount   int        `gorm:"not null;default:0" json:"lineCount"`
	TotalVotes  int64      `gorm:"not null;default:0;index" json:"totalVotes"`
	IsComplete  bool       `gorm:"not null;default:false;index" json:"isComplete"`
	NFTTokenID  *int64     `gorm:"column:nft_token_id" json:"nftTokenId,omitempty"`
	MintStatus  MintStatus `gorm:"size:16;not null;default:''" json:"mintStatus,omitempty"`
	MetadataURI string     `gorm:"type:text" json:"metadataUri,omitempty"`

	Lines []StoryLine `gorm:"foreignKey:StoryID" json:"lines,omitempty"`

	Timestamps
}

func (s *Story) BeforeCreate(tx *gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// StoryLine is one submitted line. LineNumber is unique within its story.
type StoryLine struct {
	ID         string     `gorm:"primaryKey;type:uuid" json:"id"`
	StoryID    string     `gorm:"type:uuid;not null;uniqueIndex:idx_story_line_number,priority:1" json:"storyId"`
	AuthorID   string     `gorm:"type:uuid;not null;index" json:"authorId"`
	Content    string     `gorm:"type:text;not null" json:"content"`
	LineNumber int        `gorm:"not null;uniqueIndex:idx_story_line_number,priority:2" json:"lineNumber"`
	VoteCount  int64      `gorm:"not null;default:0" json:"voteCount"`
	IsApproved bool       `gorm:"not null;default:false;index" json:"isApproved"`
	ApprovedAt *time.Time `json:"approvedAt,omitempty"`

	Author *User `gorm:"foreignKey:AuthorID" json:"author,omitempty"`

	Timestamps
}

func (l *StoryLine) BeforeCreate(tx *gorm.DB) error {
	ensureID(&l.ID)
	return nil
}

// Vote is immutable once written; one per (voter, line).
type Vote struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	VoterID   string    `gorm:"type:uuid;not null;uniqueIndex:idx_vote_voter_line,priority:1" json:"voterId"`
	LineID    string    `gorm:"type:uuid;not null;uniqueIndex:idx_vote_voter_line,priority:2;index" json:"lineId"`
	Amount    int64     `gorm:"not null" json:"amount"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (v *Vote) BeforeCreate(tx *gorm.DB) error {
	ensureID(&v.ID)
	return nil
}
