package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/finpersona/backend/internal/domain"
)

// Options configures the OpenAI-backed advisor.
type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	CallTimeout time.Duration
}

const (
	defaultModel       = openai.GPT4oMini
	defaultCallTimeout = 30 * time.Second
)

// OpenAIAdvisor implements Advisor over the OpenAI chat completion API.
// Every remote call carries a bounded timeout, and the analysis methods
// degrade to documented defaults on any transport or parse failure.
type OpenAIAdvisor struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewOpenAIAdvisor constructs the adapter.
func NewOpenAIAdvisor(logger *slog.Logger, opts Options) *OpenAIAdvisor {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}

	model := opts.Model
	if model == "" {
		model = defaultModel
	}
	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}

	return &OpenAIAdvisor{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
		logger:  logger,
	}
}

func (a *OpenAIAdvisor) complete(ctx context.Context, system, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	resp, err := a.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model:    a.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// ExplainProduct generates the recommendation text and a 0-100 match score
// for a user/product pair. The score defaults to DefaultScore when the
// remote response cannot be parsed.
func (a *OpenAIAdvisor) ExplainProduct(ctx context.Context, user domain.UserProfile, product domain.Product, history []domain.Transaction) ProductAdvice {
	system := "You are an AI specializing in personalized financial product recommendations. " +
		"Explain clearly and specifically why this product would benefit this particular user " +
		"based on their financial situation, needs, and goals."

	var sb strings.Builder
	writeProfileSummary(&sb, user)
	writeProductSummary(&sb, product)
	writeSpendingSummary(&sb, history)
	sb.WriteString("\nGenerate a personalized recommendation explanation:")

	text, err := a.complete(ctx, system, sb.String())
	if err != nil {
		a.logger.Warn("advisor explain call failed", "productId", product.ID, "error", err)
		return ProductAdvice{Score: DefaultScore}
	}

	var scorePrompt strings.Builder
	scorePrompt.WriteString("Based on the following user profile and product information, calculate a match score from 0-100. ")
	scorePrompt.WriteString("Higher scores mean a better match. Only return a number.\n")
	writeProfileSummary(&scorePrompt, user)
	writeProductSummary(&scorePrompt, product)
	scorePrompt.WriteString("\nMatch Score (0-100):")

	scoreText, err := a.complete(ctx, "", scorePrompt.String())
	if err != nil {
		a.logger.Warn("advisor score call failed", "productId", product.ID, "error", err)
		return ProductAdvice{Text: text, Score: DefaultScore}
	}

	return ProductAdvice{Text: text, Score: parseScore(scoreText)}
}

// AnalyzeSentiment assesses financial sentiment over recent transactions.
func (a *OpenAIAdvisor) AnalyzeSentiment(ctx context.Context, transactions []domain.Transaction) domain.SentimentReport {
	if len(transactions) == 0 {
		return NeutralSentiment("")
	}

	var sb strings.Builder
	sb.WriteString("Analyze the following transaction history and determine the financial sentiment.\n")
	sb.WriteString("Categorize the overall sentiment as \"positive\", \"neutral\", or \"negative\".\n")
	sb.WriteString("Assess financial health as \"excellent\", \"good\", \"stable\", \"stressed\", or \"critical\".\n\n")
	sb.WriteString("Transaction History:\n")
	writeTransactionLines(&sb, transactions, 20)
	sb.WriteString("\nRespond with JSON containing overall_sentiment, confidence (0.0-1.0), financial_health, and explanation.\n")

	text, err := a.complete(ctx, "", sb.String())
	if err != nil {
		a.logger.Warn("advisor sentiment call failed", "error", err)
		return NeutralSentiment("Could not analyze sentiment: " + err.Error())
	}

	var parsed struct {
		OverallSentiment string  `json:"overall_sentiment"`
		Confidence       float64 `json:"confidence"`
		FinancialHealth  string  `json:"financial_health"`
		Explanation      string  `json:"explanation"`
	}
	if err := json.Unmarshal([]byte(extractJSONBlock(text)), &parsed); err != nil {
		a.logger.Warn("advisor sentiment response unparseable", "error", err)
		return NeutralSentiment("Could not analyze sentiment: " + err.Error())
	}

	report := domain.SentimentReport{
		OverallSentiment: parsed.OverallSentiment,
		Confidence:       parsed.Confidence,
		FinancialHealth:  parsed.FinancialHealth,
		Explanation:      parsed.Explanation,
	}
	if report.OverallSentiment == "" {
		report.OverallSentiment = "neutral"
	}
	if report.FinancialHealth == "" {
		report.FinancialHealth = "stable"
	}
	if report.Confidence <= 0 || report.Confidence > 1 {
		report.Confidence = 0.5
	}
	return report
}

// DetectAnomalies asks the advisor for spending anomalies. No call is made
// unless at least MinAnomalyTransactions expense transactions exist.
func (a *OpenAIAdvisor) DetectAnomalies(ctx context.Context, transactions []domain.Transaction) []AnomalyDraft {
	byCategory := make(map[string][]domain.Transaction)
	expenses := 0
	for _, tx := range transactions {
		if !tx.IsExpense() {
			continue
		}
		expenses++
		category := tx.Category
		if category == "" {
			category = "Other"
		}
		byCategory[category] = append(byCategory[category], tx)
	}
	if expenses < MinAnomalyTransactions {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("Analyze the following transaction data and identify any spending anomalies: ")
	sb.WriteString("unusual spending patterns, significant increases in specific categories, or behaviors that stand out.\n\n")
	sb.WriteString("Transaction Data by Category:\n")

	categories := make([]string, 0, len(byCategory))
	for category := range byCategory {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	for _, category := range categories {
		txns := byCategory[category]
		total := 0.0
		for _, tx := range txns {
			total += -tx.Amount
		}
		fmt.Fprintf(&sb, "\n%s:\n- Total: $%.2f\n- Average: $%.2f\n- Transactions: %d\n",
			category, total, total/float64(len(txns)), len(txns))
		sort.Slice(txns, func(i, j int) bool { return txns[i].Timestamp.After(txns[j].Timestamp) })
		for i, tx := range txns {
			if i >= 5 {
				break
			}
			fmt.Fprintf(&sb, "  * %s: $%.2f at %s\n", tx.Timestamp.Format("2006-01-02"), -tx.Amount, tx.Merchant)
		}
	}

	sb.WriteString("\nIdentify up to 3 anomalies as a JSON array of objects with category, description, ")
	sb.WriteString("severity (high/medium/low), and amount (if applicable). ")
	sb.WriteString("If no clear anomalies are detected, return an empty array [].\n")

	text, err := a.complete(ctx, "", sb.String())
	if err != nil {
		a.logger.Warn("advisor anomaly call failed", "error", err)
		return nil
	}

	var drafts []AnomalyDraft
	if err := json.Unmarshal([]byte(extractJSONBlock(text)), &drafts); err != nil {
		a.logger.Warn("advisor anomaly response unparseable", "error", err)
		return nil
	}
	return drafts
}

// GenerateInsights produces insight drafts from profile and transaction
// data. With no history, on transport failure, or on an unparseable
// response it returns nil; the pipeline falls back to its deterministic
// rules.
func (a *OpenAIAdvisor) GenerateInsights(ctx context.Context, user domain.UserProfile, transactions []domain.Transaction) []InsightDraft {
	if len(transactions) == 0 {
		return nil
	}

	totalSpent, totalIncome := 0.0, 0.0
	byCategory := make(map[string]float64)
	for _, tx := range transactions {
		if tx.IsExpense() {
			category := tx.Category
			if category == "" {
				category = "Other"
			}
			byCategory[category] += -tx.Amount
			totalSpent += -tx.Amount
		} else {
			totalIncome += tx.Amount
		}
	}

	var sb strings.Builder
	sb.WriteString("As a financial advisor, analyze this user's profile and transaction data to generate 3-5 key financial insights. ")
	sb.WriteString("Focus on actionable, specific insights that would be most valuable to the user.\n")
	writeProfileSummary(&sb, user)

	sb.WriteString("\nSpending by Category:\n")
	categories := make([]string, 0, len(byCategory))
	for category := range byCategory {
		categories = append(categories, category)
	}
	sort.Slice(categories, func(i, j int) bool { return byCategory[categories[i]] > byCategory[categories[j]] })
	for i, category := range categories {
		if i >= 8 {
			break
		}
		share := 0.0
		if totalSpent > 0 {
			share = byCategory[category] / totalSpent * 100
		}
		fmt.Fprintf(&sb, "- %s: $%.2f (%.1f%%)\n", category, byCategory[category], share)
	}

	if len(user.FinancialGoals) > 0 {
		sb.WriteString("\nFinancial Goals:\n")
		for _, goal := range user.FinancialGoals {
			fmt.Fprintf(&sb, "- %s: $%.2f (Current: $%.2f)\n", goal.Name, goal.TargetAmount, goal.CurrentAmount)
		}
	}

	fmt.Fprintf(&sb, "\nTransaction Summary:\n- Total Income: $%.2f\n- Total Expenses: $%.2f\n- Net: $%.2f\n",
		totalIncome, totalSpent, totalIncome-totalSpent)
	sb.WriteString("\nReturn a JSON array where each insight has category, description, and importance (high/medium/low).\n")

	text, err := a.complete(ctx, "", sb.String())
	if err != nil {
		a.logger.Warn("advisor insight call failed", "error", err)
		return nil
	}

	var drafts []InsightDraft
	if err := json.Unmarshal([]byte(extractJSONBlock(text)), &drafts); err != nil {
		a.logger.Warn("advisor insight response unparseable", "error", err)
		return nil
	}
	return drafts
}

// PredictExpenses forecasts upcoming expenses from recurring transaction
// groups. Groups with fewer than two occurrences are never submitted.
func (a *OpenAIAdvisor) PredictExpenses(ctx context.Context, groups []RecurringGroup) []ExpenseDraft {
	var sb strings.Builder
	submitted := 0
	for _, group := range groups {
		if group.Occurrences() < 2 {
			continue
		}
		submitted++
		fmt.Fprintf(&sb, "\n%s (%s):\n", group.Description, group.Category)
		sb.WriteString("- Amounts: ")
		for i, amount := range group.Amounts {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%.2f", amount)
		}
		sb.WriteString("\n- Days of month: ")
		for i, day := range group.Days {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%d", day)
		}
		sb.WriteString("\n- Dates: ")
		for i, date := range group.Dates {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(date.Format("2006-01-02"))
		}
		fmt.Fprintf(&sb, "\n- Occurrences: %d\n", group.Occurrences())
	}
	if submitted == 0 {
		return nil
	}

	prompt := fmt.Sprintf(
		"Analyze these potentially recurring transactions and predict upcoming expenses for the next 30 days. "+
			"Today's date is %s.\n\nRecurring Transaction Patterns:\n%s\n"+
			"Return a JSON array where each prediction has description, category, amount, "+
			"due_date (YYYY-MM-DD), confidence (0.0-1.0), and is_recurring. "+
			"Only include predictions with confidence above 0.6.\n",
		time.Now().Format("2006-01-02"), sb.String())

	text, err := a.complete(ctx, "", prompt)
	if err != nil {
		a.logger.Warn("advisor prediction call failed", "error", err)
		return nil
	}

	var drafts []ExpenseDraft
	if err := json.Unmarshal([]byte(extractJSONBlock(text)), &drafts); err != nil {
		a.logger.Warn("advisor prediction response unparseable", "error", err)
		return nil
	}
	return drafts
}

// Advise answers a free-form financial question with profile, transaction,
// and conversation context.
func (a *OpenAIAdvisor) Advise(ctx context.Context, user domain.UserProfile, query string, transactions []domain.Transaction, history []domain.ChatMessage) (string, error) {
	system := "You are an advanced AI financial advisor specializing in personal finance. " +
		"Provide helpful, accurate, and personalized advice based only on the user's profile and transaction history. " +
		"Focus on actionable insights and clear explanations. Be conversational but professional."

	var sb strings.Builder
	writeProfileSummary(&sb, user)
	if len(transactions) > 0 {
		sb.WriteString("\nRecent Transactions:\n")
		writeTransactionLines(&sb, transactions, 10)
	}
	if len(history) > 0 {
		sb.WriteString("\nPrevious conversation:\n")
		start := 0
		if len(history) > 5 {
			start = len(history) - 5
		}
		for _, msg := range history[start:] {
			sender := "User"
			if msg.Sender == domain.SenderAssistant {
				sender = "You"
			}
			fmt.Fprintf(&sb, "%s: %s\n", sender, msg.Text)
		}
	}
	fmt.Fprintf(&sb, "\nUser Question: %s\n", query)

	return a.complete(ctx, system, sb.String())
}

func writeProfileSummary(sb *strings.Builder, user domain.UserProfile) {
	fp := user.FinancialProfile
	sb.WriteString("\nUser Profile:\n")
	fmt.Fprintf(sb, "- Age: %d\n", user.Profile.Age)
	fmt.Fprintf(sb, "- Monthly Income: $%.2f\n", fp.MonthlyIncome)
	fmt.Fprintf(sb, "- Monthly Expenses: $%.2f\n", fp.MonthlyExpenses)
	fmt.Fprintf(sb, "- Current Balance: $%.2f\n", fp.Balance)
	fmt.Fprintf(sb, "- Risk Profile: %s\n", fp.RiskProfile)
	fmt.Fprintf(sb, "- Credit Score: %d\n", fp.CreditScore)
	if fp.FinancialHealth != "" {
		fmt.Fprintf(sb, "- Financial Health: %s\n", fp.FinancialHealth)
	}
	if len(user.FinancialGoals) > 0 {
		names := make([]string, 0, len(user.FinancialGoals))
		for _, goal := range user.FinancialGoals {
			names = append(names, goal.Name)
		}
		fmt.Fprintf(sb, "- Financial Goals: %s\n", strings.Join(names, ", "))
	}
}

func writeProductSummary(sb *strings.Builder, product domain.Product) {
	sb.WriteString("\nProduct Information:\n")
	fmt.Fprintf(sb, "- Name: %s\n", product.Name)
	fmt.Fprintf(sb, "- Category: %s\n", product.Category)
	fmt.Fprintf(sb, "- Description: %s\n", product.Description)
	if len(product.Features) > 0 {
		fmt.Fprintf(sb, "- Features: %s\n", strings.Join(product.Features, ", "))
	}
}

func writeSpendingSummary(sb *strings.Builder, transactions []domain.Transaction) {
	byCategory := make(map[string]float64)
	for _, tx := range transactions {
		if !tx.IsExpense() {
			continue
		}
		category := tx.Category
		if category == "" {
			category = "Other"
		}
		byCategory[category] += -tx.Amount
	}
	if len(byCategory) == 0 {
		return
	}

	categories := make([]string, 0, len(byCategory))
	for category := range byCategory {
		categories = append(categories, category)
	}
	sort.Slice(categories, func(i, j int) bool { return byCategory[categories[i]] > byCategory[categories[j]] })

	sb.WriteString("\nSpending Pattern:\n")
	for i, category := range categories {
		if i >= 5 {
			break
		}
		fmt.Fprintf(sb, "- %s: $%.2f\n", category, byCategory[category])
	}
}

func writeTransactionLines(sb *strings.Builder, transactions []domain.Transaction, limit int) {
	for i, tx := range transactions {
		if i >= limit {
			break
		}
		merchant := tx.Merchant
		if merchant == "" {
			merchant = "Unknown"
		}
		fmt.Fprintf(sb, "- %s: $%.2f at %s (%s)\n", tx.Timestamp.Format("2006-01-02"), tx.Amount, merchant, tx.Category)
	}
}
