package app

// MinPlayersToStartGame defines the minimum number of occupied seats required to start a game.
// Keep this centralized so tests or local runs can adjust the rule without touching multiple call sites.
const MinPlayersToStartGame = 2

// PairsPlayers is the exact table size for parchís pairs.
const PairsPlayers = 4
