package agent

import (
	"fmt"
	"sort"
	"strings"
)

// Decoding temperatures are pinned per task: chat answers are grounded in
// account data and stay conservative, listing copy gets slightly more room.
const (
	chatTemperature    = 0.2
	listingTemperature = 0.4
)

// promptPair is a compiled instruction pair for one provider call. Compilation
// is deterministic string construction; it cannot fail.
type promptPair struct {
	System string
	User   string
}

const chatSystemPrompt = `You are the assistant of an agricultural commodities marketplace. You help farmers and traders with questions about their listings, transactions and how the marketplace works. Answer concisely and factually in the language of the user's message. Use only the account context provided; if you do not know something, say so instead of guessing. Do not give legal or financial advice.`

// compileChatPrompt pairs the fixed assistant persona with the user's
// verbatim message, prefixed by the numeric account context. No mode
// branching for chat.
func compileChatPrompt(userCtx UserContext, message string) promptPair {
	var b strings.Builder

	b.WriteString("## Account context\n")
	if userCtx.KnownUser {
		fmt.Fprintf(&b, "- active listings: %d\n", userCtx.ListingCount)
		fmt.Fprintf(&b, "- transactions: %d\n", userCtx.TransactionCount)
		for _, l := range userCtx.RecentListings {
			fmt.Fprintf(&b, "- recent listing: %s\n", l)
		}
		for _, tx := range userCtx.RecentTransactions {
			fmt.Fprintf(&b, "- recent transaction: %s\n", tx)
		}
	} else {
		b.WriteString("(unknown user, no account data)\n")
	}

	fmt.Fprintf(&b, "\n## User message\n%s\n", message)

	return promptPair{System: chatSystemPrompt, User: b.String()}
}

const listingOutputShape = `Respond with a single JSON object and nothing else - no prose, no markdown fences:

{
  "description": "the commercial offer text",
  "priceSuggestion": {"value": 0, "currency": "...", "unit": "..."},
  "confidence": "low|medium|high",
  "missingFields": ["facts that are missing but would matter"]
}`

const listingCreateSystemPrompt = `You write commercial offers for an agricultural commodities marketplace. Compose a 4-8 sentence offer strictly from the facts supplied: frame the commodity and its quality, name realistic use-cases, summarize the key specifications, and state logistics and regional availability. Never invent certifications, guarantees, or any claim the facts do not support. If an important fact is missing, list it in missingFields instead of guessing. Write the offer in the language given by the "language" fact.

` + listingOutputShape

const listingRewriteSystemPrompt = `You write commercial offers for an agricultural commodities marketplace. The seller supplied their own notes between the SELLER NOTES markers: first rewrite those notes faithfully - preserve their meaning, fix grammar and tone - then enrich the result into a 4-8 sentence offer that frames the commodity and its quality, names realistic use-cases, summarizes the key specifications, and states logistics and regional availability. Never invent certifications, guarantees, or any claim the facts and notes do not support. If an important fact is missing, list it in missingFields instead of guessing. Write the offer in the language given by the "language" fact.

` + listingOutputShape

// compileListingPrompt turns (mode, facts) into the instruction pair for the
// listing-suggest task. The fact set is embedded as a structured block; in
// rewrite mode the seller's notes follow verbatim between explicit markers
// so the model cannot confuse instructions with user-supplied content.
func compileListingPrompt(mode Mode, facts ListingFacts) promptPair {
	system := listingCreateSystemPrompt
	if mode == ModeRewrite {
		system = listingRewriteSystemPrompt
	}

	var b strings.Builder
	b.WriteString("## Listing facts\n")
	fmt.Fprintf(&b, "- category: %s\n", facts.Category)
	fmt.Fprintf(&b, "- commodity: %s\n", facts.Commodity)
	if facts.Region != "" {
		fmt.Fprintf(&b, "- region: %s\n", facts.Region)
	}
	if facts.Quantity != 0 {
		fmt.Fprintf(&b, "- quantity: %g %s\n", facts.Quantity, facts.Unit)
	}
	if facts.Currency != "" {
		fmt.Fprintf(&b, "- currency: %s\n", facts.Currency)
	}
	fmt.Fprintf(&b, "- language: %s\n", facts.Language)

	// Specs in sorted key order so compilation stays deterministic.
	if len(facts.Specs) > 0 {
		keys := make([]string, 0, len(facts.Specs))
		for k := range facts.Specs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("\n## Specifications\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", k, facts.Specs[k])
		}
	}

	if mode == ModeRewrite {
		b.WriteString("\n--- SELLER NOTES START ---\n")
		b.WriteString(facts.Notes)
		b.WriteString("\n--- SELLER NOTES END ---\n")
	}

	return promptPair{System: system, User: b.String()}
}
