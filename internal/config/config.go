package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	HTTPAddr      string
	DBDSN         string
	JWTIssuer     string
	JWTSecret     string
	JWTTTL        time.Duration
	InternalToken string
	WSOrigin      string

	Fees        Fees
	Eligibility Eligibility

	// RequireFlowSettled forces unsettled trade flows to be settled before a
	// withdrawal request can be approved.
	RequireFlowSettled bool
}

type Fees struct {
	CommissionRate       decimal.Decimal
	StampDutyRate        decimal.Decimal
	TransferFeeRate      decimal.Decimal
	MinCommission        decimal.Decimal
	MinCommissionForeign decimal.Decimal
}

type Eligibility struct {
	MaxApplyAmount          decimal.Decimal
	QualificationDays       int
	MinBlockAmount          decimal.Decimal
	MinBlockQuantity        decimal.Decimal
	MaxDiscountRate         decimal.Decimal
	DailyUserQuota          decimal.Decimal
	RiskAmountThreshold     decimal.Decimal
	ManualApprovalThreshold decimal.Decimal
}

func Load() (Config, error) {
	var c Config
	var missing []string
	c.HTTPAddr = os.Getenv("HTTP_ADDR")
	if c.HTTPAddr == "" {
		missing = append(missing, "HTTP_ADDR")
	}
	c.DBDSN = os.Getenv("DB_DSN")
	if c.DBDSN == "" {
		missing = append(missing, "DB_DSN")
	}
	c.JWTIssuer = os.Getenv("JWT_ISSUER")
	if c.JWTIssuer == "" {
		missing = append(missing, "JWT_ISSUER")
	}
	c.JWTSecret = os.Getenv("JWT_SECRET")
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	jwtTTL := os.Getenv("JWT_TTL")
	if jwtTTL == "" {
		missing = append(missing, "JWT_TTL")
	} else {
		d, err := time.ParseDuration(jwtTTL)
		if err != nil {
			return c, err
		}
		c.JWTTTL = d
	}
	c.InternalToken = os.Getenv("INTERNAL_API_TOKEN")
	if c.InternalToken == "" {
		missing = append(missing, "INTERNAL_API_TOKEN")
	}
	c.WSOrigin = os.Getenv("WS_ORIGIN")
	if c.WSOrigin == "" {
		missing = append(missing, "WS_ORIGIN")
	}

	var err error
	if c.Fees, err = loadFees(); err != nil {
		return c, err
	}
	if c.Eligibility, err = loadEligibility(); err != nil {
		return c, err
	}

	flowSettled := os.Getenv("REQUIRE_FLOW_SETTLED")
	if flowSettled == "" {
		c.RequireFlowSettled = true
	} else {
		b, err := strconv.ParseBool(flowSettled)
		if err != nil {
			return c, errors.New("invalid REQUIRE_FLOW_SETTLED")
		}
		c.RequireFlowSettled = b
	}

	if len(missing) > 0 {
		return c, errors.New("missing required env: " + strings.Join(missing, ","))
	}
	return c, nil
}

func loadFees() (Fees, error) {
	var f Fees
	var err error
	if f.CommissionRate, err = decimalEnv("COMMISSION_RATE", "0.0003"); err != nil {
		return f, err
	}
	if f.StampDutyRate, err = decimalEnv("STAMP_DUTY_RATE", "0.001"); err != nil {
		return f, err
	}
	if f.TransferFeeRate, err = decimalEnv("TRANSFER_FEE_RATE", "0.00002"); err != nil {
		return f, err
	}
	if f.MinCommission, err = decimalEnv("MIN_COMMISSION", "5"); err != nil {
		return f, err
	}
	if f.MinCommissionForeign, err = decimalEnv("MIN_COMMISSION_FOREIGN", "100"); err != nil {
		return f, err
	}
	return f, nil
}

func loadEligibility() (Eligibility, error) {
	var e Eligibility
	var err error
	if e.MaxApplyAmount, err = decimalEnv("MAX_APPLY_AMOUNT", "1000000"); err != nil {
		return e, err
	}
	days := os.Getenv("QUALIFICATION_DAYS")
	if days == "" {
		e.QualificationDays = 20
	} else {
		n, convErr := strconv.Atoi(days)
		if convErr != nil || n < 0 {
			return e, errors.New("invalid QUALIFICATION_DAYS")
		}
		e.QualificationDays = n
	}
	if e.MinBlockAmount, err = decimalEnv("MIN_BLOCK_AMOUNT", "2000000"); err != nil {
		return e, err
	}
	if e.MinBlockQuantity, err = decimalEnv("MIN_BLOCK_QUANTITY", "300000"); err != nil {
		return e, err
	}
	if e.MaxDiscountRate, err = decimalEnv("MAX_DISCOUNT_RATE", "0.3"); err != nil {
		return e, err
	}
	if e.DailyUserQuota, err = decimalEnv("DAILY_USER_QUOTA", "100000"); err != nil {
		return e, err
	}
	if e.RiskAmountThreshold, err = decimalEnv("RISK_AMOUNT_THRESHOLD", "50000"); err != nil {
		return e, err
	}
	if e.ManualApprovalThreshold, err = decimalEnv("MANUAL_APPROVAL_THRESHOLD", "80000"); err != nil {
		return e, err
	}
	return e, nil
}

func decimalEnv(key, fallback string) (decimal.Decimal, error) {
	raw := os.Getenv(key)
	if raw == "" {
		raw = fallback
	}
	v, err := decimal.NewFromString(raw)
	if err != nil || v.IsNegative() {
		return decimal.Zero, errors.New("invalid " + key)
	}
	return v, nil
}
