package domain

// outcome is the business result of applying an operation to in-memory
// account state. Failed outcomes leave the accounts untouched.
type outcome struct {
	status  TransactionStatus
	message string
}

func completed(message string) outcome {
	return outcome{status: TransactionStatusCompleted, message: message}
}

func failed(message string) outcome {
	return outcome{status: TransactionStatusFailed, message: message}
}

// applyOperation applies the operation's balance arithmetic to the in-memory
// copies of the accounts. It is a pure function of the loaded state: no I/O,
// so the retry coordinator can re-execute it against a fresh read on every
// attempt. destination is non-nil iff the operation is a transfer.
//
// Business failures (insufficient funds, no open reservation) come back as a
// Failed outcome, never as an error; the caller records them as FAILED
// transactions. After a successful effect the account invariant is
// re-checked, and a violation downgrades the outcome to Failed so that
// balance + creditLimit >= reservedBalance holds after every commit,
// including debits of funds shadowed by an open reservation.
func applyOperation(op Operation, account, destination *Account, amount int64) outcome {
	switch op {
	case OperationCredit:
		account.Balance += amount
		return completed("credit applied")

	case OperationDebit:
		if amount > account.Balance+account.CreditLimit {
			return failed("insufficient funds")
		}
		// Chosen debit policy: the shortfall beyond the raw balance draws
		// against the credit limit by letting the balance go negative, down
		// to -CreditLimit. CreditLimit itself is never mutated.
		return guarded(account, func() {
			account.Balance -= amount
		}, "debit applied", "insufficient funds")

	case OperationReserve:
		if amount > account.Balance {
			return failed("insufficient funds for reservation")
		}
		return guarded(account, func() {
			account.Balance -= amount
			account.ReservedBalance += amount
		}, "reservation placed", "insufficient funds for reservation")

	case OperationCapture:
		if amount > account.ReservedBalance {
			return failed("insufficient reservation to capture")
		}
		return guarded(account, func() {
			account.ReservedBalance -= amount
		}, "capture applied", "insufficient reservation to capture")

	case OperationReversal:
		if account.ReservedBalance <= 0 {
			return failed("no open reservation")
		}
		return guarded(account, func() {
			freed := min(amount, account.ReservedBalance)
			account.ReservedBalance -= freed
			account.Balance += freed
		}, "reversal applied", "no open reservation")

	case OperationTransfer:
		if amount > account.Balance {
			return failed("insufficient funds for transfer")
		}
		srcBefore, dstBefore := *account, *destination
		account.Balance -= amount
		destination.Balance += amount
		if account.CheckInvariant() != nil || destination.CheckInvariant() != nil {
			*account, *destination = srcBefore, dstBefore
			return failed("insufficient funds for transfer")
		}
		return completed("transfer applied")

	default:
		return failed("invalid operation")
	}
}

// guarded applies the mutation and rolls it back when it would violate the
// account invariant, turning the attempt into a business failure.
func guarded(account *Account, mutate func(), okMsg, failMsg string) outcome {
	before := *account
	mutate()
	if err := account.CheckInvariant(); err != nil {
		*account = before
		return failed(failMsg)
	}
	return completed(okMsg)
}
