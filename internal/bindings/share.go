package bindings

import "fmt"

const shareHashtags = "#ScoreQuest #Web3Gaming #NFT #Monad"

// ShareText returns the social post for a finished game. It is empty for a
// zero score, which the frontend treats as nothing to share.
func (m *GameModule) ShareText(score int, minted bool) string {
	if score <= 0 {
		return ""
	}
	text := fmt.Sprintf("🎮 Just scored %d points in ScoreQuest NFT!", score)
	if minted {
		text += " 🏆 And minted my achievement NFT!"
	}
	return text + " 🚀 A Web3 leaderboard game on Monad Testnet. " + shareHashtags
}
