package domain

import (
	"fmt"
	"strings"
)

// Personality selects the voice the assistant answers in.
type Personality string

const (
	PersonalityWarm          Personality = "warm"
	PersonalityProfessional  Personality = "professional"
	PersonalityOptimistic    Personality = "optimistic"
	PersonalityPhilosophical Personality = "philosophical"
	PersonalityConcise       Personality = "concise"
)

type personalityInfo struct {
	label       string
	icon        string
	color       string
	instruction string
}

var personalities = map[Personality]personalityInfo{
	PersonalityWarm: {
		label: "温暖共情",
		icon:  "heart.fill",
		color: "pink",
		instruction: "You are a warm, empathetic listener. You understand the user's emotions and offer comfort and support.\n" +
			"Your replies are caring and gentle and never judgmental. You always see things from the user's side.",
	},
	PersonalityProfessional: {
		label: "专业顾问",
		icon:  "brain.head.profile",
		color: "blue",
		instruction: "You are a professional counselor. You use professional knowledge to help the user analyze and solve problems.\n" +
			"Your replies are objective and rational. You guide the user to think more deeply and offer practical suggestions.",
	},
	PersonalityOptimistic: {
		label: "乐观伙伴",
		icon:  "sun.max.fill",
		color: "yellow",
		instruction: "You are an optimistic, encouraging friend. You look for the bright side and help the user keep hope.\n" +
			"Your replies are full of positive energy and point out the highlights and growth in the user's life.",
	},
	PersonalityPhilosophical: {
		label: "哲学思考",
		icon:  "moon.stars.fill",
		color: "purple",
		instruction: "You are a philosophical thinker. You draw deep ideas and wisdom out of everyday life.\n" +
			"Your replies are insightful and invite the user to reflect on the nature and meaning of life.",
	},
	PersonalityConcise: {
		label: "简洁明了",
		icon:  "bolt.fill",
		color: "orange",
		instruction: "Your replies are short and get straight to the point. You summarize the key information and convey the core insight in as few words as possible.\n" +
			"You avoid long explanations and give valuable feedback directly.",
	},
}

// Personalities lists every personality in display order.
func Personalities() []Personality {
	return []Personality{
		PersonalityWarm,
		PersonalityProfessional,
		PersonalityOptimistic,
		PersonalityPhilosophical,
		PersonalityConcise,
	}
}

// ParsePersonality resolves a personality key. An empty key selects the warm listener.
func ParsePersonality(s string) (Personality, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return PersonalityWarm, nil
	}
	p := Personality(s)
	if _, ok := personalities[p]; !ok {
		return "", fmt.Errorf("domain: unknown personality %q", s)
	}
	return p, nil
}

// Instruction is the lead instruction sent ahead of the conversation.
func (p Personality) Instruction() string {
	return personalities[p].instruction
}

func (p Personality) Label() string { return personalities[p].label }
func (p Personality) Icon() string  { return personalities[p].icon }
func (p Personality) Color() string { return personalities[p].color }
