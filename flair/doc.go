// Trade confirmation engine.
//
// Participants of a trade confirmation thread post a top-level entry tagging their trade partner (eg,
// "/u/bob traded a widget"), and the partner replies to it with the confirmation keyword. The Engine scans a
// thread for such pairs, checks both participants against account age, karma and prior trade count
// thresholds, then increments the trade count encoded in each participant's badge. Which entries have been
// handled is tracked in a ledger (see the `ledger` sub-package), so that re-running a scan never double
// credits or re-prompts.
//
// Moderators can force a pair through by sending the bot a direct message with the permalink of the entry
// (or of the confirming reply); see ProcessOverrides.
package flair
