package catalog

// SQL templates use ? placeholders and run unchanged on SQLite and Postgres.
// Ratios multiply by 1.0 to force decimal division; averages are cast to
// NUMERIC before ROUND.

// Top customers by monthly revenue. Args: limit.
const queryTopRevenueCustomers = `
SELECT
  c.customer_id,
  c.customer_name,
  p.plan_name,
  p.average_monthly_revenue,
  p.billings,
  p.payment_frequency
FROM customers c
JOIN plans p ON c.customer_id = p.customer_id
WHERE p.average_monthly_revenue IS NOT NULL
ORDER BY p.average_monthly_revenue DESC, c.customer_id
LIMIT ?`

// Contacts and workflows usage per plan.
const queryUsageByPlan = `
SELECT
  p.plan_name,
  COUNT(*) AS customer_count,
  ROUND(CAST(AVG(a.contacts) AS NUMERIC), 2) AS avg_contacts,
  ROUND(CAST(AVG(a.workflows) AS NUMERIC), 2) AS avg_workflows,
  ROUND(CAST(AVG(CASE WHEN a.workflows > 0 THEN a.contacts * 1.0 / a.workflows ELSE 0 END) AS NUMERIC), 2) AS avg_contacts_per_workflow,
  ROUND(CAST(AVG(a.integrations) AS NUMERIC), 2) AS avg_integrations
FROM customers c
JOIN activity a ON c.customer_id = a.customer_id
JOIN plans p ON c.customer_id = p.customer_id
GROUP BY p.plan_name
ORDER BY avg_contacts DESC`

// Per-customer activation and engagement score. Args: limit.
const queryEngagementAnalysis = `
SELECT
  c.customer_id,
  c.customer_name,
  p.plan_name,
  a.regular_users,
  a.monthly_active_users,
  CASE WHEN a.regular_users > 0
    THEN ROUND(CAST(a.monthly_active_users * 1.0 / a.regular_users AS NUMERIC), 3)
    ELSE 0 END AS activation_rate,
  ROUND(CAST(a.contacts * 0.3 + a.workflows * 0.4 + a.integrations * 0.2 + a.beacons * 0.1 AS NUMERIC), 2) AS engagement_score
FROM customers c
JOIN activity a ON c.customer_id = a.customer_id
LEFT JOIN plans p ON c.customer_id = p.customer_id
ORDER BY engagement_score DESC, c.customer_id
LIMIT ?`

// Revenue and user metrics per plan.
const queryPlanPerformance = `
SELECT
  p.plan_name,
  COUNT(*) AS customer_count,
  ROUND(CAST(AVG(p.average_monthly_revenue) AS NUMERIC), 2) AS avg_revenue,
  ROUND(CAST(SUM(p.average_monthly_revenue) AS NUMERIC), 2) AS total_revenue,
  ROUND(CAST(AVG(a.regular_users) AS NUMERIC), 2) AS avg_regular_users,
  ROUND(CAST(AVG(a.monthly_active_users) AS NUMERIC), 2) AS avg_monthly_active,
  ROUND(CAST(AVG(a.workflows) AS NUMERIC), 2) AS avg_workflows
FROM customers c
JOIN plans p ON c.customer_id = p.customer_id
LEFT JOIN activity a ON c.customer_id = a.customer_id
WHERE p.plan_name IS NOT NULL
GROUP BY p.plan_name
ORDER BY total_revenue DESC`

// Customers with billing problems, no activity or low activation.
// Args: activation threshold (twice), limit.
const queryAtRiskCustomers = `
SELECT
  c.customer_id,
  c.customer_name,
  p.plan_name,
  p.billings,
  p.average_monthly_revenue,
  a.regular_users,
  a.monthly_active_users,
  CASE WHEN a.regular_users > 0
    THEN ROUND(CAST(a.monthly_active_users * 1.0 / a.regular_users AS NUMERIC), 3)
    ELSE 0 END AS activation_rate,
  CASE
    WHEN COALESCE(p.billings, '') <> 'Active' THEN 'Billing Issue'
    WHEN a.monthly_active_users = 0 THEN 'No Activity'
    WHEN a.regular_users > 0 AND a.monthly_active_users * 1.0 / a.regular_users < ? THEN 'Low Engagement'
    ELSE 'Healthy'
  END AS risk_category
FROM customers c
JOIN plans p ON c.customer_id = p.customer_id
JOIN activity a ON c.customer_id = a.customer_id
WHERE COALESCE(p.billings, '') <> 'Active'
   OR a.monthly_active_users = 0
   OR (a.regular_users > 0 AND a.monthly_active_users * 1.0 / a.regular_users < ?)
ORDER BY p.average_monthly_revenue DESC, c.customer_id
LIMIT ?`

// Share of customers per plan using each feature, as a percentage.
const queryFeatureAdoption = `
SELECT
  p.plan_name,
  COUNT(*) AS customer_count,
  ROUND(CAST(AVG(CASE WHEN p.advanced_api_access THEN 1.0 ELSE 0.0 END) * 100 AS NUMERIC), 1) AS api_access_adoption,
  ROUND(CAST(AVG(CASE WHEN p.api_rate_limit_increase THEN 1.0 ELSE 0.0 END) * 100 AS NUMERIC), 1) AS rate_limit_adoption,
  ROUND(CAST(AVG(CASE WHEN p.advanced_security THEN 1.0 ELSE 0.0 END) * 100 AS NUMERIC), 1) AS security_adoption,
  ROUND(CAST(AVG(CASE WHEN a.integrations > 0 THEN 1.0 ELSE 0.0 END) * 100 AS NUMERIC), 1) AS integrations_adoption,
  ROUND(CAST(AVG(CASE WHEN a.beacons > 0 THEN 1.0 ELSE 0.0 END) * 100 AS NUMERIC), 1) AS beacons_adoption
FROM customers c
JOIN plans p ON c.customer_id = p.customer_id
LEFT JOIN activity a ON c.customer_id = a.customer_id
WHERE p.plan_name IS NOT NULL
GROUP BY p.plan_name
ORDER BY p.plan_name`

// Customers bucketed by months since active.
const queryLifecycleAnalysis = `
SELECT
  lifecycle_stage,
  COUNT(*) AS customer_count,
  ROUND(CAST(AVG(revenue) AS NUMERIC), 2) AS avg_revenue,
  ROUND(CAST(AVG(activation_rate) AS NUMERIC), 3) AS avg_activation_rate
FROM (
  SELECT
    CASE
      WHEN p.months_since_active <= 3 THEN 'New'
      WHEN p.months_since_active <= 12 THEN 'Growing'
      WHEN p.months_since_active <= 24 THEN 'Mature'
      ELSE 'Veteran'
    END AS lifecycle_stage,
    p.average_monthly_revenue AS revenue,
    CASE WHEN a.regular_users > 0 THEN a.monthly_active_users * 1.0 / a.regular_users ELSE 0 END AS activation_rate
  FROM customers c
  JOIN plans p ON c.customer_id = p.customer_id
  LEFT JOIN activity a ON c.customer_id = a.customer_id
) staged
GROUP BY lifecycle_stage
ORDER BY CASE lifecycle_stage
  WHEN 'New' THEN 1
  WHEN 'Growing' THEN 2
  WHEN 'Mature' THEN 3
  ELSE 4 END`

// High-revenue customers with low activation.
// Args: revenue threshold, activation threshold, limit.
const queryLowEngagementHighValue = `
SELECT
  c.customer_id,
  c.customer_name,
  p.plan_name,
  p.average_monthly_revenue,
  a.regular_users,
  a.monthly_active_users,
  CASE WHEN a.regular_users > 0
    THEN ROUND(CAST(a.monthly_active_users * 1.0 / a.regular_users AS NUMERIC), 3)
    ELSE 0 END AS activation_rate
FROM customers c
JOIN plans p ON c.customer_id = p.customer_id
JOIN activity a ON c.customer_id = a.customer_id
WHERE p.average_monthly_revenue > ?
  AND (CASE WHEN a.regular_users > 0 THEN a.monthly_active_users * 1.0 / a.regular_users ELSE 0 END) < ?
ORDER BY p.average_monthly_revenue DESC, c.customer_id
LIMIT ?`

// Customers grouped by revenue tier and plan, from the customer_summary view.
const queryCustomerSegments = `
SELECT
  revenue_tier,
  plan_name,
  COUNT(*) AS customer_count,
  ROUND(CAST(AVG(average_monthly_revenue) AS NUMERIC), 2) AS avg_revenue,
  ROUND(CAST(SUM(average_monthly_revenue) AS NUMERIC), 2) AS total_revenue
FROM customer_summary
WHERE revenue_tier IS NOT NULL
GROUP BY revenue_tier, plan_name
ORDER BY customer_count DESC, revenue_tier, plan_name`
